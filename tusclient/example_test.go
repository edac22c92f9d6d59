package tusclient_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"

	"github.com/shrastiRisor/tus-go-client/tusclient"
)

func Example() {
	// A minimal tus server: POST creates the upload, HEAD reports the
	// offset, PATCH appends bytes.
	var received []byte
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/files/hello")
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/files/hello", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.Header().Set("Upload-Offset", strconv.Itoa(len(received)))
			w.WriteHeader(http.StatusOK)
		case http.MethodPatch:
			body, _ := io.ReadAll(r.Body)
			received = append(received, body...)
			w.Header().Set("Upload-Offset", strconv.Itoa(len(received)))
			w.WriteHeader(http.StatusNoContent)
		}
	})

	cfg := tusclient.DefaultConfig()
	cfg.CreationEndpoint = server.URL + "/files"
	cfg.Store = tusclient.NewMemoryStore()

	client, err := tusclient.NewClient(cfg)
	if err != nil {
		panic(err)
	}

	data := "hello world"
	upload := tusclient.NewUpload(strings.NewReader(data), int64(len(data)), "example-fingerprint")

	uploader, err := client.ResumeOrCreateUpload(context.Background(), upload)
	if err != nil {
		panic(err)
	}
	if err := uploader.Upload(context.Background()); err != nil {
		panic(err)
	}

	fmt.Println(string(received))
	// Output: hello world
}
