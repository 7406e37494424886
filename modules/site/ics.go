// Package site publishes calendar feeds over plain HTTP so calendar apps
// can subscribe to a timetable without Untis credentials.
package site

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/database"
	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/ics"
	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
	"github.com/gorilla/mux"
)

// Server serves the stored timetables as .ics documents.
type Server struct {
	Store *database.Store
	Addr  string
}

func NewServer(store *database.Store, addr string) *Server {
	return &Server{Store: store, Addr: addr}
}

// Router mounts the feed routes.
func (srv *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ics/{id:[0-9]+}.ics", srv.GetICS).Methods(http.MethodGet)
	r.HandleFunc("/week/{id:[0-9]+}.html", srv.GetWeekPage).Methods(http.MethodGet)
	r.HandleFunc("/health", srv.Health).Methods(http.MethodGet)

	return r
}

// Serve blocks on the listener until it fails.
func (srv *Server) Serve() error {
	server := &http.Server{
		Addr:         srv.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	log.Println("serving calendar feeds on", srv.Addr)

	return server.ListenAndServe()
}

// feedTimetable resolves the feed of the request and loads the newest
// stored timetable of its user. Errors are already written to the client.
func (srv *Server) feedTimetable(w http.ResponseWriter, r *http.Request) (untis.Timetable, database.CalendarFeed, bool) {
	var none untis.Timetable

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "bad feed id", http.StatusBadRequest)

		return none, database.CalendarFeed{}, false
	}

	feed, ok, err := srv.Store.FeedByID(id)
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)

		return none, feed, false
	}
	if !ok {
		http.Error(w, "feed not found", http.StatusNotFound)

		return none, feed, false
	}

	tt, ok, err := srv.Store.LoadLatestTimetable(feed.UserKey)
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)

		return none, feed, false
	}
	if !ok {
		http.Error(w, "no timetable cached yet", http.StatusNotFound)

		return none, feed, false
	}

	return tt, feed, true
}

// GetICS renders the newest stored timetable of the feed's user.
// Feed ids are handed out by EnsureFeed, the file name is <id>.ics.
func (srv *Server) GetICS(w http.ResponseWriter, r *http.Request) {
	tt, feed, ok := srv.feedTimetable(w, r)
	if !ok {
		return
	}

	txt, err := ics.Generate(tt, feed.Name)
	if err != nil {
		http.Error(w, "", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set(
		"Content-Disposition",
		fmt.Sprintf("attachment; filename=\"%d.ics\"", feed.FeedID),
	)
	if _, err := w.Write([]byte(txt)); err != nil {
		log.Println("write feed:", err)
	}
}

func (srv *Server) Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		log.Println("write health:", err)
	}
}
