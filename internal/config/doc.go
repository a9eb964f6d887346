// Package config loads and validates stack manifests.
//
// A manifest is a single YAML file (stack.yaml by default) declaring the
// services of one stack: how each is started, what it depends on, how its
// health is probed, what happens when it fails, and which persistent
// volumes it owns. Loading produces an immutable Registry; the supervisor
// never re-reads the file at runtime.
//
// # Manifest Structure
//
//	name: lightrag
//	settings:
//	  backoffBase: 500ms
//	  backoffCap: 30s
//	  probe:
//	    interval: 10s
//	    timeout: 5s
//	    retries: 3
//	services:
//	  - name: postgres
//	    image: postgres:16
//	    environment:
//	      POSTGRES_PASSWORD: "${PG_PASSWORD:-lightrag}"
//	    ports: ["5432:5432"]
//	    volumes:
//	      - name: pgdata
//	        mountPath: /var/lib/postgresql/data
//	    healthCheck:
//	      type: command
//	      command: ["pg_isready", "-h", "localhost"]
//	      interval: 5s
//	    restart:
//	      policy: always
//	  - name: rag-api
//	    image: lightrag:latest
//	    dependsOn: [postgres]
//	    healthCheck:
//	      type: http
//	      target: http://localhost:9621/health
//	      gracePeriod: 30s
//
// # Service Types
//
// Services run either as containers on the local Docker Engine
// (type: container, inferred when an image is set) or as local child
// processes (type: command, inferred otherwise).
//
// # Defaults and Validation
//
// Unset probe and restart fields are filled from settings before
// validation, so every spec handed to the rest of the program is fully
// populated. Validation collects all problems into one ValidationError:
// duplicate or malformed names, references to undeclared dependencies,
// self-dependencies, missing start directives, malformed health checks
// and port mappings, and volumes shared between services.
//
// # Environment Variable Expansion
//
// Service environment values support shell-style expansion:
//
//	environment:
//	  API_KEY: "${MY_API_KEY}"
//	  DATA_DIR: "${HOME}/data"
//	  WITH_DEFAULT: "${MISSING:-default_value}"
package config
