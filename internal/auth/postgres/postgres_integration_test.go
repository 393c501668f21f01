// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package postgres_test

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/auth/postgres"
)

func integrationUser(email string) *auth.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &auth.User{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: "$argon2id$hash",
		FirstName:    "Grace",
		LastName:     "Hopper",
		DateOfBirth:  time.Date(1906, 12, 9, 0, 0, 0, 0, time.UTC),
		Role:         auth.DefaultRole,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

var _ = Describe("UserDirectory", func() {
	var (
		ctx context.Context
		dir *postgres.UserDirectory
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = postgres.NewUserDirectory(testPool)
		_, err := testPool.Exec(ctx, `TRUNCATE users CASCADE`)
		Expect(err).NotTo(HaveOccurred())
	})

	It("round-trips a user and looks up email case-insensitively", func() {
		u := integrationUser("grace@example.com")
		Expect(dir.Create(ctx, u)).To(Succeed())

		got, err := dir.GetByEmail(ctx, "GRACE@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID).To(Equal(u.ID))
		Expect(got.DateOfBirth).To(Equal(u.DateOfBirth))
	})

	It("reports duplicates through the unique index", func() {
		Expect(dir.Create(ctx, integrationUser("grace@example.com"))).To(Succeed())
		err := dir.Create(ctx, integrationUser("Grace@Example.com"))
		Expect(err).To(MatchError(auth.ErrDuplicate))
	})

	It("updates the password hash", func() {
		u := integrationUser("grace@example.com")
		Expect(dir.Create(ctx, u)).To(Succeed())
		Expect(dir.UpdatePassword(ctx, u.ID, "rotated")).To(Succeed())

		got, err := dir.GetByID(ctx, u.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.PasswordHash).To(Equal("rotated"))
	})
})

var _ = Describe("ResetRepository", func() {
	var (
		ctx   context.Context
		repo  *postgres.ResetRepository
		owner *auth.User
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = postgres.NewResetRepository(testPool)
		_, err := testPool.Exec(ctx, `TRUNCATE users CASCADE`)
		Expect(err).NotTo(HaveOccurred())

		owner = integrationUser("owner@example.com")
		Expect(postgres.NewUserDirectory(testPool).Create(ctx, owner)).To(Succeed())
	})

	It("consumes a reset exactly once", func() {
		now := time.Now().UTC().Truncate(time.Microsecond)
		reset, err := auth.NewPasswordReset(owner.ID, auth.HashResetID(ulid.Make().String()), now, now.Add(auth.DefaultResetTTL))
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.Create(ctx, reset)).To(Succeed())

		got, err := repo.GetByTokenHash(ctx, reset.TokenHash)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.UserID).To(Equal(owner.ID))

		Expect(repo.Delete(ctx, reset.ID)).To(Succeed())
		Expect(repo.Delete(ctx, reset.ID)).To(MatchError(auth.ErrNotFound))
	})

	It("purges expired resets", func() {
		past := time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)
		reset, err := auth.NewPasswordReset(owner.ID, auth.HashResetID("old"), past, past.Add(time.Minute))
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.Create(ctx, reset)).To(Succeed())

		n, err := repo.DeleteExpired(ctx, time.Now().UTC())
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))
	})
})
