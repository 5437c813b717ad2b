package main

import (
	"flag"
	"log"

	"gorm.io/gorm/clause"

	"sessionauth/internal/config"
	"sessionauth/internal/database"
	"sessionauth/internal/domain"
	"sessionauth/internal/pkg/password"
	"sessionauth/internal/pkg/validator"
)

type seedUser struct {
	FullName string
	Username string
	Email    string
	Phone    string
	Password string
	Role     domain.UserRole
}

func main() {
	adminPassword := flag.String("admin-password", "Admin#12345", "password for the seeded admin account")
	withDemo := flag.Bool("demo", true, "also create demo user accounts")
	flag.Parse()

	if err := config.LoadEnvFiles(); err != nil {
		log.Fatal("load env files:", err)
	}
	cfg, err := config.LoadAuthRuntimeConfig()
	if err != nil {
		log.Fatal("load config:", err)
	}
	if problems := validator.PasswordProblems(*adminPassword); len(problems) > 0 {
		log.Fatalf("admin password is too weak: %v", problems)
	}

	db, err := database.Connect(cfg.DatabaseURL, database.Options{Silent: true})
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}

	log.Println("Running AutoMigrate...")
	if err := database.Migrate(db); err != nil {
		log.Fatal("AutoMigrate failed:", err)
	}

	hasher, err := password.NewHasher(cfg.PasswordHashCost)
	if err != nil {
		log.Fatal(err)
	}

	users := []seedUser{{
		FullName: "Administrator",
		Username: "admin",
		Email:    "admin@sessionauth.local",
		Phone:    "+10000000001",
		Password: *adminPassword,
		Role:     domain.RoleAdmin,
	}}
	if *withDemo {
		users = append(users,
			seedUser{FullName: "Demo User", Username: "demo", Email: "demo@sessionauth.local", Phone: "+10000000002", Password: "Demo#12345", Role: domain.RoleUser},
			seedUser{FullName: "Demo Host", Username: "host", Email: "host@sessionauth.local", Phone: "+10000000003", Password: "Host#12345", Role: domain.RoleHost},
		)
	}

	for _, su := range users {
		hash, err := hasher.Hash(su.Password)
		if err != nil {
			log.Fatalf("hash password for %s: %v", su.Username, err)
		}
		u := domain.User{
			FullName:     su.FullName,
			Username:     su.Username,
			Email:        su.Email,
			Phone:        su.Phone,
			PasswordHash: hash,
			Role:         su.Role,
			IsVerified:   true,
		}

		// Existing accounts are left untouched so re-running never resets a changed password.
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&u)
		if res.Error != nil {
			log.Fatalf("create %s: %v", su.Username, res.Error)
		}
		if res.RowsAffected == 0 {
			log.Printf("%s already exists, skipped", su.Email)
			continue
		}
		log.Printf("created %s (%s) / %s", su.Email, su.Role, su.Password)
	}

	log.Println("Seed completed!")
}
