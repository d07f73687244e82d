// SPDX-License-Identifier: AGPL-3.0-or-later
package services

import (
	"context"
	"net/http"

	"github.com/trellisfw/masklink/internal/domain/models"
	"github.com/trellisfw/masklink/internal/infrastructure/transport"
)

// fakeConnection is an in-memory stand-in for the transport adapter, letting
// service-layer tests exercise GET/PUT/POST call patterns without real network I/O.
type fakeConnection struct {
	domain    string
	resources map[string]models.JSON
	puts      map[string]models.JSON
	posts     []models.JSON
	nextID    string
}

var _ transport.Connection = (*fakeConnection)(nil)

func newFakeConnection(domain string) *fakeConnection {
	return &fakeConnection{domain: domain, resources: map[string]models.JSON{}, puts: map[string]models.JSON{}}
}

func (f *fakeConnection) Domain() string { return f.domain }

func (f *fakeConnection) Get(_ context.Context, target string) (models.JSON, error) {
	if v, ok := f.resources[target]; ok {
		return v, nil
	}
	return nil, &transport.HTTPError{URL: target, StatusCode: http.StatusNotFound}
}

func (f *fakeConnection) Put(_ context.Context, target string, data models.JSON, _ map[string]string) (http.Header, error) {
	f.puts[target] = data
	f.resources[target] = data
	return http.Header{}, nil
}

func (f *fakeConnection) Post(_ context.Context, target string, data models.JSON, _ map[string]string) (http.Header, error) {
	f.posts = append(f.posts, data)
	id := f.nextID
	if id == "" {
		id = "resources/generated"
	}
	header := http.Header{}
	header.Set("Content-Location", "/"+id)
	return header, nil
}
