// Package routes describes the route groups mounted under /api. The groups
// themselves are supplied by their owners; this package only fixes where they
// live and provides a stand-in for groups that have not been wired yet.
package routes

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fueltrackr/fueltrackr-api/internal/api"
)

const (
	UsersPrefix   = "/api/users"
	TravelsPrefix = "/api/travels"
	AdminPrefix   = "/api/admin"
)

// Group is a router served under a fixed URL prefix.
type Group struct {
	Name   string
	Prefix string
	Router http.Handler
}

// Set holds the three FuelTrackr route groups. A nil router is replaced by
// Unavailable when the set is expanded.
type Set struct {
	Users   http.Handler
	Travels http.Handler
	Admin   http.Handler
}

// Groups expands the set into mountable groups in a stable order.
func (s Set) Groups() []Group {
	return []Group{
		{Name: "users", Prefix: UsersPrefix, Router: orUnavailable(s.Users, "users")},
		{Name: "travels", Prefix: TravelsPrefix, Router: orUnavailable(s.Travels, "travels")},
		{Name: "admin", Prefix: AdminPrefix, Router: orUnavailable(s.Admin, "admin")},
	}
}

// Unavailable returns a router that answers every request with 501 and the
// standard error envelope.
func Unavailable(name string) http.Handler {
	detail := fmt.Sprintf("%s routes are not available", name)
	respond := func(w http.ResponseWriter, _ *http.Request) {
		api.WriteError(w, http.StatusNotImplemented, detail)
	}

	r := chi.NewRouter()
	r.HandleFunc("/", respond)
	r.HandleFunc("/*", respond)
	return r
}

func orUnavailable(h http.Handler, name string) http.Handler {
	if h != nil {
		return h
	}
	return Unavailable(name)
}
