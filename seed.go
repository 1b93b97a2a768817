package main

import (
	"log"
	"strings"

	authdomain "tdp-backend/internal/auth/domain"
	authRepo "tdp-backend/internal/auth/repository"
	triagedomain "tdp-backend/internal/triage/domain"
	triageRepo "tdp-backend/internal/triage/repository"
	"tdp-backend/pkg/config"
)

// seed upserts the default actors and the watched inboxes. Safe to run
// on every boot.
func seed(userRepo authRepo.UserRepository, inboxRepo triageRepo.InboxRepository, cfg *config.Config) error {
	if err := seedUser(userRepo, "admin@tdp.com", "Admin", "AD", authdomain.RoleAdmin); err != nil {
		return err
	}
	if err := seedUser(userRepo, "user@tdp.com", "User", "US", authdomain.RoleUser); err != nil {
		return err
	}

	shared := 0
	for _, email := range cfg.SharedInboxes {
		if _, err := inboxRepo.Upsert(&triagedomain.Inbox{
			Key:          makeKey("", email, 40),
			EmailAddress: email,
			IsEscalation: false,
		}); err != nil {
			return err
		}
		shared++
	}

	escalation := 0
	for _, email := range []string{cfg.EscalationInboxStaffing, cfg.EscalationInboxServices, cfg.EscalationInboxBilling} {
		if email == "" {
			continue
		}
		if _, err := inboxRepo.Upsert(&triagedomain.Inbox{
			Key:          makeKey("ESCALATION_", email, 60),
			EmailAddress: email,
			IsEscalation: true,
		}); err != nil {
			return err
		}
		escalation++
	}

	log.Printf("[Seed] Seeded %d shared inboxes, %d escalation inboxes", shared, escalation)
	return nil
}

func seedUser(userRepo authRepo.UserRepository, email, displayName, initials, role string) error {
	existing, err := userRepo.FindByEmail(email)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	// Default password for local testing; rotate in any real deployment.
	hashed, err := authRepo.HashPassword("password123")
	if err != nil {
		return err
	}
	return userRepo.Create(&authdomain.User{
		Email:       email,
		Password:    hashed,
		DisplayName: displayName,
		Initials:    initials,
		Role:        role,
	})
}

// makeKey derives a stable uppercase key from an email address, capped
// to keep index sizes sane.
func makeKey(prefix, email string, maxLen int) string {
	base := strings.ToUpper(prefix + email)
	var b strings.Builder
	lastUnderscore := false
	for _, r := range base {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	key := strings.Trim(b.String(), "_")
	if len(key) > maxLen {
		key = key[:maxLen]
	}
	return key
}
