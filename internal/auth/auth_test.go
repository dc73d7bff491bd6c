package auth

import "testing"

func TestHashAndComparePassword(t *testing.T) {
	s := NewService(Config{JWTSecret: "test-secret", BCryptCost: 4})

	hash, err := s.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := s.ComparePassword(hash, "hunter2"); err != nil {
		t.Errorf("ComparePassword with correct password failed: %v", err)
	}
	if err := s.ComparePassword(hash, "wrong"); err == nil {
		t.Error("ComparePassword with wrong password should fail")
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	s := NewService(Config{JWTSecret: "test-secret"})

	token, err := s.GenerateToken(1, "alice", RoleObserver)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := s.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != 1 || claims.Username != "alice" || claims.Role != RoleObserver {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	s1 := NewService(Config{JWTSecret: "secret-one"})
	s2 := NewService(Config{JWTSecret: "secret-two"})

	token, err := s1.GenerateToken(1, "alice", RoleAdmin)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := s2.ValidateToken(token); err == nil {
		t.Error("expected validation to fail with mismatched secret")
	}
}

func TestHasRoleHierarchy(t *testing.T) {
	tests := []struct {
		userRole     string
		requiredRole string
		want         bool
	}{
		{RoleAdmin, RoleGuest, true},
		{RoleAdmin, RoleAdmin, true},
		{RoleGuest, RoleAdmin, false},
		{RoleObserver, RoleViewer, true},
		{RoleViewer, RoleObserver, false},
		{"bogus", RoleGuest, false},
	}
	for _, tt := range tests {
		if got := HasRole(tt.userRole, tt.requiredRole); got != tt.want {
			t.Errorf("HasRole(%s, %s) = %v, want %v", tt.userRole, tt.requiredRole, got, tt.want)
		}
	}
}

func TestCanControlTelescope(t *testing.T) {
	if !CanControlTelescope(RoleAdmin) {
		t.Error("admin should be able to control telescope")
	}
	if !CanControlTelescope(RoleObserver) {
		t.Error("observer should be able to control telescope")
	}
	if CanControlTelescope(RoleViewer) {
		t.Error("viewer should not be able to control telescope")
	}
}

func TestCanManageUsers(t *testing.T) {
	if !CanManageUsers(RoleAdmin) {
		t.Error("admin should be able to manage users")
	}
	if CanManageUsers(RoleObserver) {
		t.Error("observer should not be able to manage users")
	}
}
