package app

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/semmidev/mongovault/internal/infrastructure/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const clientSecret = `{"installed":{"client_id":"id.apps.googleusercontent.com","client_secret":"secret",` +
	`"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token",` +
	`"redirect_uris":["http://localhost:8085/auth/google/callback"]}}`

func TestDriveAuthServer(t *testing.T) {
	Convey("Given a client secret file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "client_secret.json")
		So(os.WriteFile(path, []byte(clientSecret), 0600), ShouldBeNil)

		server, err := NewDriveAuthServer(logger.NewNop(), path)
		So(err, ShouldBeNil)
		handler := server.Handler()

		Convey("The start page redirects to Google with offline access and our state", func() {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/google/drive", nil))

			So(rec.Code, ShouldEqual, http.StatusTemporaryRedirect)
			location, err := url.Parse(rec.Header().Get("Location"))
			So(err, ShouldBeNil)
			So(location.Host, ShouldEqual, "accounts.google.com")
			So(location.Query().Get("access_type"), ShouldEqual, "offline")
			So(location.Query().Get("state"), ShouldEqual, server.state)
		})

		Convey("A callback with a foreign state is rejected", func() {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=other&code=x", nil))
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A callback without a code is rejected", func() {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/google/callback?state="+server.state, nil))
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})

	Convey("Given bad arguments", t, func() {
		_, err := NewDriveAuthServer(nil, "x")
		So(err, ShouldNotBeNil)

		_, err = NewDriveAuthServer(logger.NewNop(), "")
		So(err, ShouldNotBeNil)

		_, err = NewDriveAuthServer(logger.NewNop(), filepath.Join(t.TempDir(), "missing.json"))
		So(err, ShouldNotBeNil)
	})
}
