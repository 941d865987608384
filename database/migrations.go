package database

import (
	"log"

	"inkpost/models"

	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Profile{},
		&models.Post{},
		&models.Comment{},
		&models.Topic{},
		&models.Like{},
		&models.Bookmark{},
	)
	if err != nil {
		log.Printf("Error running migrations: %v", err)
		return err
	}

	if err := seedRoles(db); err != nil {
		log.Printf("Error seeding roles: %v", err)
		return err
	}

	log.Println("Migrations completed successfully")
	return nil
}

// seedRoles makes sure the fixed role rows exist; registration only ever
// references them, it never creates new ones.
func seedRoles(db *gorm.DB) error {
	for _, name := range []string{models.RoleAdmin, models.RoleUser} {
		role := models.Role{Name: name}
		if err := db.Where("name = ?", name).FirstOrCreate(&role).Error; err != nil {
			return err
		}
	}
	return nil
}
