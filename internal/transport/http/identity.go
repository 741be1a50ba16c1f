package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"learn-quiz-service/internal/domain"
)

const (
	visitorKey = "visitor"
	roleGrader = "grader"
)

// Claims is the bearer token payload. Subject carries the user id.
type Claims struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity resolves who is calling: a signed-in user from a bearer token, or
// an anonymous visitor keyed by a session cookie.
type Identity struct {
	secret     []byte
	cookieName string
	cookieTTL  time.Duration
}

func NewIdentity(secret, cookieName string, cookieTTL time.Duration) *Identity {
	return &Identity{secret: []byte(secret), cookieName: cookieName, cookieTTL: cookieTTL}
}

// Middleware stores a domain.Visitor on the gin context. Requests with a bad
// token are rejected; requests with no token become anonymous.
func (i *Identity) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
				return
			}
			visitor, err := i.ParseToken(parts[1])
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
				return
			}
			c.Set(visitorKey, visitor)
			c.Next()
			return
		}

		key, err := c.Cookie(i.cookieName)
		if err != nil || key == "" {
			key = uuid.NewString()
			c.SetCookie(i.cookieName, key, int(i.cookieTTL.Seconds()), "/", "", false, true)
		}
		c.Set(visitorKey, domain.Visitor{SessionKey: key})
		c.Next()
	}
}

// IssueToken signs a bearer token for a user.
func (i *Identity) IssueToken(userID, username string, grader bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if grader {
		claims.Role = roleGrader
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// ParseToken validates a bearer token and maps it to a signed-in visitor.
func (i *Identity) ParseToken(raw string) (domain.Visitor, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return domain.Visitor{}, err
	}
	if !token.Valid || claims.Subject == "" {
		return domain.Visitor{}, errors.New("invalid token")
	}
	return domain.Visitor{
		UserID:   claims.Subject,
		Username: claims.Name,
		Grader:   claims.Role == roleGrader,
	}, nil
}

func visitorFrom(c *gin.Context) domain.Visitor {
	if v, ok := c.Get(visitorKey); ok {
		if visitor, ok := v.(domain.Visitor); ok {
			return visitor
		}
	}
	return domain.Visitor{}
}
