package auth

import (
	"encoding/base64"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAPIKey(t *testing.T) {
	key, err := GenerateAPIKey()
	require.NoError(t, err)

	raw, err := base64.URLEncoding.DecodeString(key)
	require.NoError(t, err, "key must be base64url")
	assert.Len(t, raw, apiKeyBytes)
	assert.False(t, strings.ContainsAny(key, "+/"), "key %q is not URL safe", key)

	// The key must fit bcrypt's 72 byte input limit so it can be hashed
	assert.LessOrEqual(t, len(key), 72)
}

func TestGenerateAPIKey_Distinct(t *testing.T) {
	seen := make(map[string]struct{}, 50)
	for i := 0; i < 50; i++ {
		key, err := GenerateAPIKey()
		require.NoError(t, err)
		if _, dup := seen[key]; dup {
			t.Fatalf("duplicate key after %d keys", i)
		}
		seen[key] = struct{}{}
	}
}

func TestHashPassword_RoundTrip(t *testing.T) {
	key, err := GenerateAPIKey()
	require.NoError(t, err)

	hash, err := HashPassword(key)
	require.NoError(t, err)
	assert.NotEqual(t, key, hash)
	assert.True(t, strings.HasPrefix(hash, "$2"), "not a bcrypt hash: %s", hash)

	assert.True(t, CheckPasswordHash(key, hash))
	assert.False(t, CheckPasswordHash(key+"x", hash))
	assert.False(t, CheckPasswordHash("", hash))
}

func TestHashPassword_Salted(t *testing.T) {
	a, err := HashPassword("same")
	require.NoError(t, err)
	b, err := HashPassword("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashPassword_TooLong(t *testing.T) {
	_, err := HashPassword(strings.Repeat("k", 73))
	assert.Error(t, err)
}

func TestCheckPasswordHash_GarbageHash(t *testing.T) {
	assert.False(t, CheckPasswordHash("key", "not-a-hash"))
	assert.False(t, CheckPasswordHash("key", ""))
}

func TestKeyVerifier_Disabled(t *testing.T) {
	v := NewKeyVerifier("")
	assert.False(t, v.Enabled())
	assert.True(t, v.Verify(""))
	assert.True(t, v.Verify("anything"))
}

func TestKeyVerifier_Verify(t *testing.T) {
	hash, err := HashPassword("secret-key")
	require.NoError(t, err)
	v := NewKeyVerifier(hash)
	require.True(t, v.Enabled())

	tests := []struct {
		name string
		key  string
		want bool
	}{
		{"empty", "", false},
		{"wrong", "secret-kez", false},
		{"prefix", "secret", false},
		{"correct", "secret-key", true},
		{"correct again from cache", "secret-key", true},
		{"wrong after cache", "other", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.Verify(tt.key); got != tt.want {
				t.Errorf("Verify(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestKeyVerifier_CachesAcceptedDigest(t *testing.T) {
	hash, err := HashPassword("secret-key")
	require.NoError(t, err)
	v := NewKeyVerifier(hash)

	assert.Nil(t, v.accepted)
	require.True(t, v.Verify("secret-key"))
	assert.Len(t, v.accepted, 32)

	// A rejected key must not replace the cached digest
	cached := append([]byte(nil), v.accepted...)
	require.False(t, v.Verify("nope"))
	assert.Equal(t, cached, v.accepted)
}

func TestKeyVerifier_Concurrent(t *testing.T) {
	hash, err := HashPassword("secret-key")
	require.NoError(t, err)
	v := NewKeyVerifier(hash)

	var wg sync.WaitGroup
	results := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "secret-key"
			if i%2 == 1 {
				key = "wrong"
			}
			results <- v.Verify(key) == (i%2 == 0)
		}(i)
	}
	wg.Wait()
	close(results)

	for ok := range results {
		assert.True(t, ok)
	}
}
