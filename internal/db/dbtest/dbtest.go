// Package dbtest opens throwaway in-memory databases for package tests.
package dbtest

import (
	"testing"

	"tabletop/internal/db"
	"tabletop/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns a migrated in-memory SQLite database private to the test
func New(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	gdb, err := db.Open("sqlite", dsn, logger.Silent)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

// CreateUser inserts a user with the given role and password and returns it
func CreateUser(t testing.TB, gdb *gorm.DB, username string, role domain.Role, password string) domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := domain.User{Username: username, PasswordHash: string(hash), Role: role}
	require.NoError(t, gdb.Create(&user).Error)
	return user
}

// Identity builds the identity of a stored user
func Identity(u domain.User) domain.Identity {
	return domain.Identity{UserID: u.ID, Username: u.Username, Role: u.Role}
}

// CreateCharacter inserts a character owned by owner with sensible sheet defaults
func CreateCharacter(t testing.TB, gdb *gorm.DB, owner domain.User, name string) domain.Character {
	t.Helper()
	ch := domain.Character{
		UserID: owner.ID, Name: name, Class: "Fighter", Race: "Human", Level: 1,
		HPCurrent: 12, HPMax: 12, AC: 15,
		Strength: 14, Dexterity: 12, Constitution: 13, Intelligence: 10, Wisdom: 10, Charisma: 8,
	}
	ch.Normalize()
	require.NoError(t, gdb.Create(&ch).Error)
	return ch
}
