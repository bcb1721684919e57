package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func testVerifier() Verifier {
	return Verifier{
		Secret:    []byte("test-secret-32-bytes-long-000000"),
		Issuer:    "beaute",
		Audience:  "beaute-admin",
		ClockSkew: time.Second,
		Now:       func() time.Time { return fixedNow },
	}
}

func TestIssueAndParseRoundTrip(t *testing.T) {
	v := testVerifier()
	raw, err := v.Issue("ops@beaute.test", RoleAdmin, time.Hour)
	require.NoError(t, err)

	claims, err := v.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, Claims{Subject: "ops@beaute.test", Role: RoleAdmin}, claims)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	v := testVerifier()
	raw, err := v.Issue("ops", RoleAdmin, time.Minute)
	require.NoError(t, err)

	v.Now = func() time.Time { return fixedNow.Add(2 * time.Hour) }
	_, err = v.Parse(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsWrongSecretAndIssuer(t *testing.T) {
	v := testVerifier()
	raw, err := v.Issue("ops", RoleAdmin, time.Hour)
	require.NoError(t, err)

	other := testVerifier()
	other.Secret = []byte("another-secret-another-secret-00")
	_, err = other.Parse(raw)
	require.ErrorIs(t, err, ErrInvalidToken)

	other = testVerifier()
	other.Issuer = "someone-else"
	_, err = other.Parse(raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsUnexpectedAlgorithm(t *testing.T) {
	v := testVerifier()
	tok, err := jwt.NewBuilder().
		Issuer(v.Issuer).
		Audience([]string{v.Audience}).
		Subject("ops").
		IssuedAt(fixedNow).
		Expiration(fixedNow.Add(time.Hour)).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS512, v.Secret))
	require.NoError(t, err)

	_, err = v.Parse(string(signed))
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := testVerifier().Parse("not.a.token")
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = testVerifier().Parse("")
	require.ErrorIs(t, err, ErrInvalidToken)
}
