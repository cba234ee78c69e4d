// Package workspace loads hitcron workspace files.
//
// A workspace is a YAML (or JSON) document declaring environments,
// authentication credentials, collections of API definitions and scheduled
// tests. It is the seed format for the store: the CLI imports it before
// running a batch or starting the scheduler.
//
// Example:
//
//	environments:
//	  - id: staging
//	    name: Staging
//	    variables:
//	      - name: baseUrl
//	        value: https://staging.example.com
//	collections:
//	  - id: smoke
//	    applicationId: shop
//	    name: Smoke
//	    apis:
//	      - id: login
//	        url: "{{baseUrl}}/login"
//	        method: POST
//	        order: 1
//	schedules:
//	  - id: nightly
//	    cron: "0 3 * * *"
//	    environmentId: staging
//	    collections: [smoke]
//	    isActive: true
package workspace
