package rest

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Aanu1995/Virtual-Tourist/album"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondPrettyOnlyWhenAsked(t *testing.T) {
	pin := struct {
		ID string `json:"id"`
	}{"a1"}
	data := map[string]string{
		"http://host/pins/a1":              `{"id":"a1"}` + "\n",
		"http://host/pins/a1?pretty=false": `{"id":"a1"}` + "\n",
		"http://host/pins/a1?pretty=true":  "{\n  \"id\": \"a1\"\n}\n",
	}
	for url, expected := range data {
		t.Run(url, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, url, nil)
			resp := httptest.NewRecorder()
			Respond(r).WithJSON(resp, http.StatusOK, pin)

			body, err := io.ReadAll(resp.Result().Body)
			require.NoError(t, err)
			assert.Equal(t, expected, string(body))
			assert.Equal(t, "application/json", resp.Header().Get("Content-Type"))
		})
	}
}

func TestErrorPayloadCarriesKindAndData(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://host/pins/a1/album", nil)

	resp := httptest.NewRecorder()
	Respond(r).WithError(resp, album.ErrBusy)
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.JSONEq(t, `{"error":"`+album.ErrBusy.Error()+`","kind":"busy"}`, resp.Body.String())

	resp = httptest.NewRecorder()
	Respond(r).WithErrorPayload(resp, errors.New("boom"), []string{"kept"})
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.JSONEq(t, `{"error":"boom","kind":"internal","data":["kept"]}`, resp.Body.String())
}

func TestBinaryResponseSetsLength(t *testing.T) {
	resp := httptest.NewRecorder()
	respondWithBinary(resp, "image/png", 3, strings.NewReader("abc"))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "image/png", resp.Header().Get("Content-Type"))
	assert.Equal(t, "3", resp.Header().Get("Content-Length"))
	assert.Equal(t, "abc", resp.Body.String())
}
