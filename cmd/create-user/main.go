package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"

	"consulta_ciudadana_go/config"
	"consulta_ciudadana_go/db"
	"consulta_ciudadana_go/models"
	"consulta_ciudadana_go/services"

	"golang.org/x/term"
)

func main() {
	role := flag.String("role", string(models.RoleSuperAdmin), "role of the new account (admin, super_admin, planificador)")
	flag.Parse()

	// Load configuration
	cfg := config.Load()

	// Initialize database
	database, err := db.Initialize(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close(database)

	// Run migrations
	if err := db.AutoMigrate(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Crear usuario ===")
	fmt.Println()

	fmt.Print("Usuario: ")
	username, _ := reader.ReadString('\n')
	username = strings.TrimSpace(username)

	// Get password securely
	fmt.Print("Contraseña: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		log.Fatalf("Failed to read password: %v", err)
	}
	fmt.Println() // New line after password input

	fmt.Print("Confirmar contraseña: ")
	confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		log.Fatalf("Failed to read password: %v", err)
	}
	fmt.Println()

	if string(passwordBytes) != string(confirmBytes) {
		log.Fatal("Passwords do not match")
	}

	user, err := services.CreateUser(database, services.CreateUserInput{
		Username: username,
		Password: string(passwordBytes),
		Role:     *role,
	})
	if err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	fmt.Println()
	fmt.Println("✓ Usuario creado")
	fmt.Printf("  ID: %s\n", user.ID)
	fmt.Printf("  Usuario: %s\n", user.Username)
	fmt.Printf("  Rol: %s\n", user.Role)
}
