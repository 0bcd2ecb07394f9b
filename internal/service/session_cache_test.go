package service

import (
	"testing"
	"time"

	"github.com/bigkaa/triup-gateway/internal/domain/model"
)

// TestSessionCache_GetSet проверяет базовые операции Get/Set.
func TestSessionCache_GetSet(t *testing.T) {
	cache := NewSessionCache(100, 5*time.Minute)

	// Cache miss
	if _, ok := cache.Get("tok-1"); ok {
		t.Fatal("ожидался cache miss для нового токена")
	}

	cache.Set("tok-1", &model.Session{Token: "tok-1", Username: "admin", RolesID: model.RoleAdmin})
	got, ok := cache.Get("tok-1")
	if !ok {
		t.Fatal("ожидался cache hit после Set")
	}
	if got.Username != "admin" {
		t.Errorf("Username = %q, ожидался %q", got.Username, "admin")
	}
}

// TestSessionCache_TTLExpiration проверяет автоматическое истечение TTL.
func TestSessionCache_TTLExpiration(t *testing.T) {
	cache := NewSessionCache(100, 50*time.Millisecond)
	cache.Set("tok-ttl", &model.Session{Token: "tok-ttl"})

	time.Sleep(100 * time.Millisecond)

	if _, ok := cache.Get("tok-ttl"); ok {
		t.Fatal("ожидался cache miss после истечения TTL")
	}
}

// TestSessionCache_Eviction проверяет вытеснение при переполнении.
func TestSessionCache_Eviction(t *testing.T) {
	cache := NewSessionCache(2, time.Minute)
	cache.Set("a", &model.Session{Token: "a"})
	cache.Set("b", &model.Session{Token: "b"})
	cache.Set("c", &model.Session{Token: "c"})

	if cache.Len() != 2 {
		t.Errorf("Len = %d, ожидалось 2", cache.Len())
	}
	if _, ok := cache.Get("a"); ok {
		t.Error("самая старая запись должна быть вытеснена")
	}
}
