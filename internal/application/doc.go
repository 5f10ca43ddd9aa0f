// Package application assembles the FuelTrackr HTTP service. App is a small
// builder over a chi router that tracks the configuring and serving phases and
// runs startup hooks; New wires the FuelTrackr middleware, endpoints, route
// groups and the database startup check onto it.
package application
