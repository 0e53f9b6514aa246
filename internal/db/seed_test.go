package db

import (
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/diewo77/go-onboarding/auth"
	"github.com/diewo77/go-onboarding/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	d, err := OpenSQLite("file:"+uuid.NewString()+"?mode=memory&cache=shared", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := Migrate(d); err != nil {
		t.Fatal(err)
	}
	return d
}

func TestMigrate_CreatesTables(t *testing.T) {
	d := newTestDB(t)
	if err := CheckSchema(d); err != nil {
		t.Fatal(err)
	}
}

func TestSeedIdempotent(t *testing.T) {
	d := newTestDB(t)
	opts := SeedOptions{AdminEmails: []string{"Ops@Corp.Example", "hr@corp.example"}, AdminPassword: "s3cret-pass"}
	if err := Seed(d, opts); err != nil {
		t.Fatal(err)
	}
	if err := Seed(d, opts); err != nil {
		t.Fatal(err)
	}

	var count int64
	d.Model(&models.User{}).Where("role = ?", auth.RoleAdmin).Count(&count)
	if count != 2 {
		t.Fatalf("expected 2 admins, got %d", count)
	}
	var ops models.User
	if err := d.Where("email = ?", "ops@corp.example").First(&ops).Error; err != nil {
		t.Fatalf("email should be normalized: %v", err)
	}
	if !ops.IsVerified() {
		t.Error("seeded admins should be verified")
	}
	if bcrypt.CompareHashAndPassword([]byte(ops.Password), []byte("s3cret-pass")) != nil {
		t.Error("password hash mismatch")
	}
}

func TestSeed_PromotesExistingUser(t *testing.T) {
	d := newTestDB(t)
	u := models.User{Email: "lead@corp.example", Password: "x", Role: auth.RoleApplicant}
	if err := d.Create(&u).Error; err != nil {
		t.Fatal(err)
	}
	if err := Seed(d, SeedOptions{AdminEmails: []string{"lead@corp.example"}, AdminPassword: "pw"}); err != nil {
		t.Fatal(err)
	}
	var got models.User
	d.First(&got, "id = ?", u.ID)
	if got.Role != auth.RoleAdmin {
		t.Errorf("role = %q, want admin", got.Role)
	}
	if got.Password != "x" {
		t.Error("existing password must be kept")
	}
}

func TestSeed_RequiresPassword(t *testing.T) {
	d := newTestDB(t)
	if err := Seed(d, SeedOptions{AdminEmails: []string{"a@b.example"}}); err == nil {
		t.Fatal("expected error without password")
	}
	if err := Seed(d, SeedOptions{}); err != nil {
		t.Fatalf("no admins configured should be a no-op: %v", err)
	}
}
