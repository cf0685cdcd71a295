package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const secret = "test-secret"

func router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/me", JWTAuthMiddleware(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": c.GetString("userId"), "requestId": c.GetString("requestId")})
	})
	return r
}

func TestJWTAuthMiddleware(t *testing.T) {
	user := primitive.NewObjectID().Hex()
	valid, err := GenerateToken(secret, user, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	expired, _ := GenerateToken(secret, user, -time.Minute)
	wrongKey, _ := GenerateToken("other", user, time.Hour)
	badUser, _ := GenerateToken(secret, "not-an-id", time.Hour)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: user}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	cases := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"bearer", "Bearer " + valid, "", http.StatusOK},
		{"query token", "", valid, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Token " + valid, "", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, "", http.StatusUnauthorized},
		{"wrong key", "Bearer " + wrongKey, "", http.StatusUnauthorized},
		{"bad user id", "Bearer " + badUser, "", http.StatusUnauthorized},
		{"alg none", "Bearer " + none, "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target := "/me"
			if tc.query != "" {
				target += "?token=" + tc.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router().ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d: %s", w.Code, tc.want, w.Body)
			}
		})
	}
}

func TestParseTokenRoundTrip(t *testing.T) {
	user := primitive.NewObjectID().Hex()
	tok, err := GenerateToken(secret, user, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ParseToken(secret, tok)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != user {
		t.Fatalf("userId = %s", claims.UserID)
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("requestId")) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(RequestIDHeader)
	if generated == "" || w.Body.String() != generated {
		t.Fatalf("generated id %q, body %q", generated, w.Body)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get(RequestIDHeader) != "abc-123" {
		t.Fatalf("caller id not reused: %q", w.Header().Get(RequestIDHeader))
	}
}
