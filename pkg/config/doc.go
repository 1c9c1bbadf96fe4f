// Package config loads the settings of a modcheck run.
//
// # Overview
//
// Settings come from the first of modcheck.yaml, modcheck.yml, .modcheck.yaml or
// .modcheck.yml found in the workspace root. Every key is optional:
//
//	deleteUnused: false
//	autoCorrect: true
//	ignoreUnusedFinding: [":core:testing"]
//	doNotCheck: [":legacy"]
//	checks:
//	  sortDependencies: true
//	sort:
//	  dependencyComparators: ['(api|implementation)\(project.*', '.*']
//	additionalCodeGenerators:
//	  - name: moshi
//	    generatorCoordinates: com.squareup.moshi:moshi-kotlin-codegen
//	    annotationNames: [com.squareup.moshi.JsonClass]
//	analysis:
//	  concurrency: 4
//	  cache: {type: redis, redisURL: "redis://localhost:6379/0", ttl: 1h}
//	reports:
//	  format: github
//	history:
//	  driver: sqlite3
//	  dsn: .modcheck/history.db
//	webhooks:
//	  - url: https://hooks.slack.com/services/T000/B000/XXXX
//	    format: slack
//	    events: [run.failed]
//
// # Environment
//
// A .env file in the working directory is loaded first. Variables then override
// the file:
//
//	MODCHECK_AUTO_CORRECT="false"
//	MODCHECK_CONCURRENCY="8"
//	MODCHECK_CACHE_TYPE="redis"
//	MODCHECK_REDIS_URL="redis://cache:6379/0"
//	MODCHECK_REPORT_FORMAT="json"
//	MODCHECK_S3_BUCKET="ci-reports"
//	MODCHECK_S3_ACCESS_KEY / MODCHECK_S3_SECRET_KEY
//	MODCHECK_HISTORY_DSN="postgres://localhost/modcheck?sslmode=disable"
//	MODCHECK_LOG_LEVEL="debug"
//	MODCHECK_OTEL_ENABLED="true"
//	MODCHECK_WEBHOOK_URL / MODCHECK_WEBHOOK_SECRET / MODCHECK_WEBHOOK_FORMAT
//
// The loaded Config is not modified afterwards; Settings converts it into the
// linter settings threaded through the runner, the rules and the fix applicator.
package config
