package main

import (
  "fmt"
  "os"

  "github.com/dedupehq/dedupe-backend/internal/app"
)

func main() {
  a, err := app.New(app.Options{API: true, Workers: true})
  if err != nil {
    fmt.Printf("Failed to init app: %v\n", err)
    os.Exit(1)
  }
  defer a.Close()

  a.Start()
  if err := a.Run(); err != nil {
    a.Log.Error("Server exited", "error", err)
    os.Exit(1)
  }
}
