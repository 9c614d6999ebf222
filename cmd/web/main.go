package main

import "ecosystia_backend/internal/app"

func main() {
	app.Run()
}
