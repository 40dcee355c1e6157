package main

import (
	"log"

	"leadgen-dashboard/internal/config"
	"leadgen-dashboard/internal/database"
	"leadgen-dashboard/internal/models"
)

// Seeds a handful of demo leads so the dashboard has something to show
// on a fresh install.
func main() {
	cfg := config.LoadConfig()

	db, err := database.New(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	hot := "hot"
	warm := "warm"
	seeds := []models.Lead{
		{Name: "Kardeşler Lokantası", Company: "Kardeşler Lokantası", Phone: "+905321112233", Email: "info@kardesler.com.tr", Website: "https://kardesler.com.tr", Status: "new", Priority: &hot, Score: 100, Tags: "restoran"},
		{Name: "Yıldız Emlak", Company: "Yıldız Emlak", Phone: "+905334445566", Status: "new", Priority: &warm, Score: 70, Tags: "emlak"},
		{Name: "Moda Kuaför", Company: "Moda Kuaför", Phone: "+905357778899", Website: "https://modakuafor.example", Status: "new", Score: 80, Tags: "kuaför"},
		{Name: "Tekno Bilgisayar", Company: "Tekno Bilgisayar", Phone: "+905360001122", Email: "satis@teknobilgisayar.com", Status: "contacted", Score: 90, Tags: "elektronik"},
	}

	for i := range seeds {
		if err := db.Create(&seeds[i]).Error; err != nil {
			log.Printf("Error seeding %s: %v", seeds[i].Name, err)
			continue
		}
		log.Printf("Seeded lead: %s", seeds[i].Name)
	}

	log.Println("Seeding complete")
}
