// Package core has the analytics query service and the schedule upload pipeline.
package core
