package app_test

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// fakeGitHub serves a posts repository for owner "o", repo "r", branch "main".
func fakeGitHub(t *testing.T, posts map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/o/r/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		type entry struct {
			Path string `json:"path"`
			Type string `json:"type"`
		}
		tree := []entry{{Path: "assets", Type: "tree"}}
		for id := range posts {
			tree = append(tree, entry{Path: id + ".mdx", Type: "blob"})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"tree": tree})
	})
	mux.HandleFunc("GET /raw/o/r/main/{file}", func(w http.ResponseWriter, r *http.Request) {
		src, ok := posts[strings.TrimSuffix(r.PathValue("file"), ".mdx")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(src))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// fakeVoice answers every synthesis request with the same plausible payload.
func fakeVoice(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	audio := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("ID3-frame-", 20)))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"data": audio})
	}))
	t.Cleanup(srv.Close)
	return srv
}

const helloPost = `---
title: Hello World
date: "2024-03-01"
tags: [go]
---
Some prose that is long enough to narrate.
`

const shortPost = `---
title: Hi
date: "2024-01-01"
---
`
