package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rouna/storefront/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-chars!!"

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                testSecret,
		Issuer:                "storefront-test",
		AccessTokenExpiration: 15 * time.Minute,
	})
}

func signRaw(t *testing.T, claims jwt.Claims, method jwt.SigningMethod, key any) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc := newTestJWTService()

	for _, role := range []Role{RoleUser, RoleAdmin} {
		t.Run(string(role), func(t *testing.T) {
			userID := uuid.New()
			token, expiresAt, err := svc.GenerateAccessToken(userID, role)
			require.NoError(t, err)
			assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

			claims, err := svc.ValidateAccessToken(token)
			require.NoError(t, err)
			assert.Equal(t, userID.String(), claims.UserID)
			assert.Equal(t, role, claims.Role)
			assert.Equal(t, role == RoleAdmin, claims.IsAdmin())

			got, err := claims.GetUserUUID()
			require.NoError(t, err)
			assert.Equal(t, userID, got)
			assert.Greater(t, claims.GetRemainingTTL(), 14*time.Minute)
		})
	}
}

func TestJWTService_GenerateRejectsUnknownRole(t *testing.T) {
	_, _, err := newTestJWTService().GenerateAccessToken(uuid.New(), "owner")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestJWTService_Validate(t *testing.T) {
	svc := newTestJWTService()
	now := time.Now()
	registered := func(issued time.Time, ttl time.Duration) jwt.RegisteredClaims {
		return jwt.RegisteredClaims{
			Issuer:    "storefront-test",
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
		}
	}
	userID := uuid.NewString()

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{
			name:  "expired",
			token: signRaw(t, &Claims{RegisteredClaims: registered(now.Add(-2*time.Hour), time.Hour), UserID: userID, Role: RoleUser}, jwt.SigningMethodHS256, []byte(testSecret)),
			want:  ErrExpiredToken,
		},
		{
			name:  "not yet valid",
			token: signRaw(t, &Claims{RegisteredClaims: registered(now.Add(time.Hour), time.Hour), UserID: userID, Role: RoleUser}, jwt.SigningMethodHS256, []byte(testSecret)),
			want:  ErrTokenNotYetValid,
		},
		{
			name:  "wrong secret",
			token: signRaw(t, &Claims{RegisteredClaims: registered(now, time.Hour), UserID: userID, Role: RoleUser}, jwt.SigningMethodHS256, []byte("another-secret-key-of-32-characters")),
			want:  ErrInvalidToken,
		},
		{
			name:  "wrong issuer",
			token: signRaw(t, &Claims{RegisteredClaims: jwt.RegisteredClaims{Issuer: "elsewhere", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))}, UserID: userID}, jwt.SigningMethodHS256, []byte(testSecret)),
			want:  ErrInvalidToken,
		},
		{
			name:  "missing user",
			token: signRaw(t, &Claims{RegisteredClaims: registered(now, time.Hour), Role: RoleAdmin}, jwt.SigningMethodHS256, []byte(testSecret)),
			want:  ErrMissingUserID,
		},
		{
			name:  "user is not a uuid",
			token: signRaw(t, &Claims{RegisteredClaims: registered(now, time.Hour), UserID: "42", Role: RoleUser}, jwt.SigningMethodHS256, []byte(testSecret)),
			want:  ErrInvalidClaims,
		},
		{
			name:  "unknown role",
			token: signRaw(t, &Claims{RegisteredClaims: registered(now, time.Hour), UserID: userID, Role: "root"}, jwt.SigningMethodHS256, []byte(testSecret)),
			want:  ErrInvalidRole,
		},
		{
			name:  "unsigned",
			token: signRaw(t, &Claims{RegisteredClaims: registered(now, time.Hour), UserID: userID}, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType),
			want:  ErrInvalidToken,
		},
		{
			name:  "garbage",
			token: "not.a.jwt",
			want:  ErrInvalidToken,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestJWTService_MissingRoleDefaultsToUser(t *testing.T) {
	svc := newTestJWTService()
	now := time.Now()
	token := signRaw(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "storefront-test",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		UserID: uuid.NewString(),
	}, jwt.SigningMethodHS256, []byte(testSecret))

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, RoleUser, claims.Role)
	assert.False(t, claims.IsAdmin())
}

func TestClaims_RemainingTTL(t *testing.T) {
	assert.Zero(t, (&Claims{}).GetRemainingTTL())
	past := &Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}}
	assert.Zero(t, past.GetRemainingTTL())
}
