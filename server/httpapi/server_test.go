package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxd/inboxd/db"
)

type fakeStore struct {
	emails   []db.Email
	services []db.Service
	listErr  error

	created       []db.Service
	updatedID     int64
	updatedSender string
}

func (f *fakeStore) ListEmailsForAddress(_ context.Context, localPart string, domains []string, excludedSender string) ([]db.Email, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.emails, nil
}

func (f *fakeStore) ListServices(_ context.Context) ([]db.Service, error) {
	return f.services, nil
}

func (f *fakeStore) GetServiceByName(_ context.Context, name string) (*db.Service, error) {
	for i := range f.services {
		if f.services[i].Name == name {
			return &f.services[i], nil
		}
	}
	return nil, db.ErrServiceNotFound
}

func (f *fakeStore) CreateService(_ context.Context, name, senderFilter, subjectFilter string) (int64, error) {
	f.created = append(f.created, db.Service{Name: name, SenderFilter: senderFilter, SubjectFilter: subjectFilter})
	return int64(len(f.created)), nil
}

func (f *fakeStore) UpdateServiceFilters(_ context.Context, id int64, senderFilter, subjectFilter string) error {
	for _, s := range f.services {
		if s.ID == id {
			f.updatedID = id
			f.updatedSender = senderFilter
			return nil
		}
	}
	return db.ErrServiceNotFound
}

func email(from, subject string) db.Email {
	return db.Email{
		MessageID:   "<" + subject + "@test>",
		FromAddress: from,
		ToAddress:   "alice@catty.my.id",
		Subject:     subject,
		ReceivedAt:  time.Now(),
	}
}

func testServer(t *testing.T, store Store, options ServerOptions) *Server {
	t.Helper()
	if len(options.Domains) == 0 {
		options.Domains = []string{"catty.my.id"}
	}
	srv, err := New(store, options)
	require.NoError(t, err)
	return srv
}

func doRequest(srv *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	srv.setupRoutes().ServeHTTP(rec, req)
	return rec
}

func TestNewRequiresDomains(t *testing.T) {
	_, err := New(&fakeStore{}, ServerOptions{})
	assert.Error(t, err)
}

func TestListEmailsAllScope(t *testing.T) {
	store := &fakeStore{emails: []db.Email{
		email("no-reply@zoom.us", "Zoom meeting invitation"),
		email("info@account.netflix.com", "Netflix: Your sign-in code"),
	}}
	srv := testServer(t, store, ServerOptions{})

	rec := doRequest(srv, "GET", "/api/emails/alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []db.Email
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)
}

func TestListEmailsEmptyEncodesAsArray(t *testing.T) {
	srv := testServer(t, &fakeStore{}, ServerOptions{})

	rec := doRequest(srv, "GET", "/api/emails/alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestListEmailsStoreFailure(t *testing.T) {
	srv := testServer(t, &fakeStore{listErr: errors.New("pool closed")}, ServerOptions{})

	rec := doRequest(srv, "GET", "/api/emails/alice", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func serviceFixtures() []db.Service {
	return []db.Service{
		{ID: 1, Name: "Zoom", SenderFilter: "zoom.us", SubjectFilter: "Zoom meeting invitation|Your Zoom sign-in code"},
		{ID: 2, Name: "Netflix", SenderFilter: "netflix.com", SubjectFilter: "Netflix"},
	}
}

func TestListEmailsForNamedService(t *testing.T) {
	store := &fakeStore{
		emails: []db.Email{
			email("no-reply@zoom.us", "Zoom meeting invitation"),
			email("info@account.netflix.com", "Netflix: Your sign-in code"),
			email("hello@shop.example", "Order shipped"),
		},
		services: serviceFixtures(),
	}
	srv := testServer(t, store, ServerOptions{})

	rec := doRequest(srv, "GET", "/api/emails/alice/service/Zoom", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []db.Email
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "no-reply@zoom.us", got[0].FromAddress)
}

func TestListEmailsForCatchAll(t *testing.T) {
	store := &fakeStore{
		emails: []db.Email{
			email("no-reply@zoom.us", "Zoom meeting invitation"),
			// A known sender with an off-filter subject still belongs to
			// its service's sender scope, so it stays out of the catch-all.
			email("billing@zoom.us", "Invoice"),
			email("hello@shop.example", "Order shipped"),
		},
		services: serviceFixtures(),
	}
	srv := testServer(t, store, ServerOptions{})

	rec := doRequest(srv, "GET", "/api/emails/alice/service/other", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []db.Email
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "hello@shop.example", got[0].FromAddress)
}

func TestListEmailsForUnknownService(t *testing.T) {
	srv := testServer(t, &fakeStore{services: serviceFixtures()}, ServerOptions{})

	rec := doRequest(srv, "GET", "/api/emails/alice/service/Dropbox", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListServices(t *testing.T) {
	srv := testServer(t, &fakeStore{services: serviceFixtures()}, ServerOptions{})

	rec := doRequest(srv, "GET", "/api/services", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []db.Service
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Zoom", got[0].Name)
}

func TestCreateService(t *testing.T) {
	store := &fakeStore{}
	srv := testServer(t, store, ServerOptions{})

	body := []byte(`{"name":"Dropbox","sender_filter":"dropbox.com","subject_filter":"Dropbox"}`)
	rec := doRequest(srv, "POST", "/api/admin/services", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	require.Len(t, store.created, 1)
	assert.Equal(t, "dropbox.com", store.created[0].SenderFilter)
}

func TestCreateServiceRequiresName(t *testing.T) {
	srv := testServer(t, &fakeStore{}, ServerOptions{})

	rec := doRequest(srv, "POST", "/api/admin/services", []byte(`{"sender_filter":"x"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateService(t *testing.T) {
	store := &fakeStore{services: serviceFixtures()}
	srv := testServer(t, store, ServerOptions{})

	body := []byte(`{"sender_filter":"mail.zoom.us","subject_filter":"Zoom"}`)
	rec := doRequest(srv, "PUT", "/api/admin/services/1", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), store.updatedID)
	assert.Equal(t, "mail.zoom.us", store.updatedSender)
}

func TestUpdateServiceNotFound(t *testing.T) {
	srv := testServer(t, &fakeStore{services: serviceFixtures()}, ServerOptions{})

	rec := doRequest(srv, "PUT", "/api/admin/services/99", []byte(`{}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminAuthRequired(t *testing.T) {
	srv := testServer(t, &fakeStore{}, ServerOptions{APIKey: "secret"})

	rec := doRequest(srv, "POST", "/api/admin/services", []byte(`{"name":"X"}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest("POST", "/api/admin/services", bytes.NewReader([]byte(`{"name":"X"}`)))
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	srv.setupRoutes().ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest("POST", "/api/admin/services", bytes.NewReader([]byte(`{"name":"X"}`)))
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	srv.setupRoutes().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadRoutesSkipAuth(t *testing.T) {
	srv := testServer(t, &fakeStore{}, ServerOptions{APIKey: "secret"})

	rec := doRequest(srv, "GET", "/api/emails/alice", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAllowedHosts(t *testing.T) {
	srv := testServer(t, &fakeStore{}, ServerOptions{AllowedHosts: []string{"10.0.0.0/8"}})

	req := httptest.NewRequest("GET", "/api/emails/alice", nil)
	req.RemoteAddr = "192.168.1.5:4444"
	rec := httptest.NewRecorder()
	srv.setupRoutes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest("GET", "/api/emails/alice", nil)
	req.RemoteAddr = "10.1.2.3:4444"
	rec = httptest.NewRecorder()
	srv.setupRoutes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
