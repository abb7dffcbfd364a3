// Package couchdb is the CouchDB document store and session backend.
package couchdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/mcmanager/milkledger/internal/config"
	"github.com/mcmanager/milkledger/internal/domain/models"
	"github.com/mcmanager/milkledger/internal/repository/docstore"
)

// SessionCookie is the cookie CouchDB issues on login.
const SessionCookie = "AuthSession"

// ErrUnauthorized is returned for rejected credentials or expired sessions.
var ErrUnauthorized = errors.New("couchdb: unauthorized")

// Repository talks to one CouchDB database over HTTP.
type Repository struct {
	http     *resty.Client
	dbName   string
	username string
	password string
	logger   *zap.Logger
}

var _ docstore.Store = (*Repository)(nil)

// NewRepository builds a CouchDB backed repository.
func NewRepository(cfg config.CouchDBConfig, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)

	return &Repository{
		http:     client,
		dbName:   cfg.DBName,
		username: cfg.Username,
		password: cfg.Password,
		logger:   logger,
	}
}

type couchError struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

type putResponse struct {
	OK  bool   `json:"ok"`
	ID  string `json:"id"`
	Rev string `json:"rev"`
}

// docRequest authenticates as the service account when one is configured.
func (r *Repository) docRequest(ctx context.Context) *resty.Request {
	req := r.http.R().SetContext(ctx).SetPathParam("db", r.dbName)
	if r.username != "" {
		req.SetBasicAuth(r.username, r.password)
	}
	return req
}

// EnsureDatabase creates the database when it does not exist yet.
func (r *Repository) EnsureDatabase(ctx context.Context) error {
	resp, err := r.docRequest(ctx).Put("/{db}")
	if err != nil {
		return fmt.Errorf("create database %s: %w", r.dbName, err)
	}

	switch resp.StatusCode() {
	case http.StatusCreated, http.StatusAccepted, http.StatusPreconditionFailed:
		return nil
	}
	return r.statusError("create database "+r.dbName, resp)
}

// Get implements docstore.Store.
func (r *Repository) Get(ctx context.Context, id string, doc docstore.Document) error {
	resp, err := r.docRequest(ctx).
		SetPathParam("id", id).
		Get("/{db}/{id}")
	if err != nil {
		return fmt.Errorf("get document %s: %w", id, err)
	}

	if resp.StatusCode() != http.StatusOK {
		return r.statusError("get document "+id, resp)
	}

	if err := json.Unmarshal(resp.Body(), doc); err != nil {
		return fmt.Errorf("decode document %s: %w", id, err)
	}
	return nil
}

// Put implements docstore.Store.
func (r *Repository) Put(ctx context.Context, doc docstore.Document) (string, error) {
	meta := doc.Metadata()
	if meta.ID == "" {
		return "", errors.New("put document: id must not be empty")
	}

	result := new(putResponse)
	resp, err := r.docRequest(ctx).
		SetPathParam("id", meta.ID).
		SetBody(doc).
		SetResult(result).
		Put("/{db}/{id}")
	if err != nil {
		return "", fmt.Errorf("put document %s: %w", meta.ID, err)
	}

	if code := resp.StatusCode(); code != http.StatusCreated && code != http.StatusAccepted {
		return "", r.statusError("put document "+meta.ID, resp)
	}

	r.logger.Debug("document saved", zap.String("id", meta.ID), zap.String("rev", result.Rev))
	meta.Rev = result.Rev
	return result.Rev, nil
}

// Login opens a cookie session for the given credentials.
func (r *Repository) Login(ctx context.Context, creds models.Credentials) (models.UserSession, *http.Cookie, error) {
	var session models.UserSession
	resp, err := r.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"name": creds.Name, "password": creds.Password}).
		SetResult(&session).
		Post("/_session")
	if err != nil {
		return models.UserSession{}, nil, fmt.Errorf("login: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return models.UserSession{}, nil, r.statusError("login", resp)
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == SessionCookie {
			return session, cookie, nil
		}
	}
	return models.UserSession{}, nil, errors.New("login: no session cookie in response")
}

type sessionInfo struct {
	OK      bool `json:"ok"`
	UserCtx struct {
		Name  *string  `json:"name"`
		Roles []string `json:"roles"`
	} `json:"userCtx"`
}

// CurrentSession resolves a session cookie value to its user. Anonymous or
// expired sessions yield ErrUnauthorized.
func (r *Repository) CurrentSession(ctx context.Context, cookieValue string) (models.UserSession, error) {
	if cookieValue == "" {
		return models.UserSession{}, ErrUnauthorized
	}

	var info sessionInfo
	resp, err := r.http.R().
		SetContext(ctx).
		SetCookie(&http.Cookie{Name: SessionCookie, Value: cookieValue}).
		SetResult(&info).
		Get("/_session")
	if err != nil {
		return models.UserSession{}, fmt.Errorf("session lookup: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return models.UserSession{}, r.statusError("session lookup", resp)
	}

	if info.UserCtx.Name == nil || *info.UserCtx.Name == "" {
		return models.UserSession{}, ErrUnauthorized
	}

	return models.UserSession{OK: info.OK, Name: *info.UserCtx.Name, Roles: info.UserCtx.Roles}, nil
}

// Logout closes the session behind cookieValue.
func (r *Repository) Logout(ctx context.Context, cookieValue string) error {
	resp, err := r.http.R().
		SetContext(ctx).
		SetCookie(&http.Cookie{Name: SessionCookie, Value: cookieValue}).
		Delete("/_session")
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return r.statusError("logout", resp)
	}
	return nil
}

func (r *Repository) statusError(op string, resp *resty.Response) error {
	var body couchError
	_ = json.Unmarshal(resp.Body(), &body)

	switch resp.StatusCode() {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, docstore.ErrNotFound)
	case http.StatusConflict:
		return fmt.Errorf("%s: %w", op, docstore.ErrConflict)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %s: %w", op, body.Reason, ErrUnauthorized)
	}

	r.logger.Warn("unexpected couchdb response",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode()),
		zap.String("error", body.Error),
		zap.String("reason", body.Reason),
	)
	return fmt.Errorf("%s: couchdb status %d: %s %s", op, resp.StatusCode(), body.Error, body.Reason)
}
