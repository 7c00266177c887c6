package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetcal/clinic-scheduling/internal/db"
)

// Seeds one demo tenant: clinic configuration with weekday hours, a handful of
// professionals with weekly schedules, plus clients and their pets.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	tenantID := uuid.New()
	log.Printf("seeding tenant %s", tenantID)

	if err := seedClinicConfig(context.Background(), pool, tenantID); err != nil {
		log.Fatalf("seed clinic config: %v", err)
	}

	professionals, err := seedProfessionals(context.Background(), pool, tenantID, 20)
	if err != nil {
		log.Fatalf("seed professionals: %v", err)
	}

	if err := seedClientsAndPets(context.Background(), pool, tenantID, 500); err != nil {
		log.Fatalf("seed clients and pets: %v", err)
	}

	log.Printf("seed complete: tenant=%s professionals=%d", tenantID, len(professionals))
}

func seedClinicConfig(ctx context.Context, pool *pgxpool.Pool, tenantID uuid.UUID) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO clinic_configurations (tenant_id, default_duration_minutes, slot_interval_minutes, cancellation_notice_hours)
		VALUES ($1, 30, 15, 24)
	`, tenantID)
	if err != nil {
		return err
	}

	// Open Monday through Saturday, closed Sunday
	for weekday := 1; weekday <= 6; weekday++ {
		opens, closes := 8*60, 18*60
		if weekday == 6 {
			closes = 13 * 60
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO clinic_hours (tenant_id, weekday, opens_minutes, closes_minutes)
			VALUES ($1, $2, $3, $4)
		`, tenantID, weekday, opens, closes)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("clinic configuration seeded")
	return nil
}

func seedProfessionals(ctx context.Context, pool *pgxpool.Pool, tenantID uuid.UUID, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d professionals", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()

		_, err := tx.Exec(ctx, `
			INSERT INTO professionals (id, tenant_id, name, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, tenantID, name)
		if err != nil {
			return nil, err
		}

		// Monday through Friday, 09:00-17:00
		for weekday := 1; weekday <= 5; weekday++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO professional_schedules (id, tenant_id, professional_id, weekday, start_minutes, end_minutes, is_available, duration_minutes)
				VALUES ($1, $2, $3, $4, $5, $6, true, NULL)
			`, uuid.New(), tenantID, id, weekday, 9*60, 17*60)
			if err != nil {
				return nil, err
			}
		}

		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("professionals seeded")
	return ids, nil
}

func seedClientsAndPets(ctx context.Context, pool *pgxpool.Pool, tenantID uuid.UUID, count int) error {
	log.Printf("seeding %d clients", count)

	const batchSize = 100

	species := []string{"dog", "cat", "rabbit", "parrot", "hamster"}

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			clientID := uuid.New()

			_, err := tx.Exec(ctx, `
				INSERT INTO clients (id, tenant_id, name, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, clientID, tenantID, gofakeit.Name())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}

			pets := gofakeit.Number(1, 3)
			for p := 0; p < pets; p++ {
				_, err := tx.Exec(ctx, `
					INSERT INTO pets (id, tenant_id, client_id, name, species, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, now(), now())
				`, uuid.New(), tenantID, clientID, gofakeit.PetName(), species[gofakeit.Number(0, len(species)-1)])
				if err != nil {
					_ = tx.Rollback(ctx)
					return err
				}
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("clients seeded: %d/%d", end, count)
	}

	log.Println("clients and pets seeded")
	return nil
}
