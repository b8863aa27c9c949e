// Command offersync is the service binary.
//
//	offersync migrate              apply pending migrations
//	offersync migrate:rollback     roll back the last batch
//	offersync migrate:status       list migrations and their state
//	offersync auth                 obtain or reuse the vendor access token
//	offersync serve                start the HTTP API and the sync scheduler
//	offersync sync                 run one sync cycle and exit
//	offersync schedule:run         run only the sync scheduler
//	offersync route:list           print the HTTP routes
//
// Configuration is read from config/app.yaml, .env and the process
// environment, in increasing order of precedence.
package main
