// Package main RAG Assistant API Server
//
//	@title			RAG Assistant API
//	@version		1.0
//	@description	Retrieval-augmented question answering over uploaded documents and scraped pages, with hybrid vector/fuzzy search and conversation memory
//
//	@contact.name	API Support
//
//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html
//
//	@host		localhost:8080
//	@BasePath	/
package main

import (
	"log"

	"github.com/joho/godotenv"

	_ "rag-assistant/docs" // swagger docs registration
	"rag-assistant/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	srv, err := server.NewServer()
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	log.Printf("Listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("Server exited: %v", err)
	}
}
