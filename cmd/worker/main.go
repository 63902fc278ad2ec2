package main

import (
  "fmt"
  "os"
  "os/signal"
  "syscall"

  "github.com/dedupehq/dedupe-backend/internal/app"
)

// Worker-only binary for deployments that scale queue consumers
// independently of the API.
func main() {
  a, err := app.New(app.Options{Workers: true})
  if err != nil {
    fmt.Printf("Failed to init app: %v\n", err)
    os.Exit(1)
  }

  a.Start()
  a.Log.Info("Workers running")

  sig := make(chan os.Signal, 1)
  signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
  <-sig
  a.Log.Info("Shutting down workers...")
  a.Close()
}
