package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/pathfinder-backend/internal/domain/catalog"
)

func TestValidExternalID(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"ascii", "chess-club", true},
		{"max runes non-ascii", strings.Repeat("é", catalog.ExternalIDMaxLen), true},
		{"too many runes", strings.Repeat("a", catalog.ExternalIDMaxLen+1), false},
		{"blank", "   ", false},
		{"control char", "chess\x00club", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := validExternalID(tc.in); got != tc.want {
				t.Fatalf("validExternalID(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestBindJSONAcceptsNonASCIIExternalID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	RegisterValidators()

	id := strings.Repeat("ü", catalog.ExternalIDMaxLen)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"external_id":"`+id+`"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	var req externalIDRequest
	if err := bindJSON(c, &req); err != nil {
		t.Fatalf("bindJSON: %v", err)
	}
	if req.ExternalID != id {
		t.Fatalf("external_id = %q", req.ExternalID)
	}
}
