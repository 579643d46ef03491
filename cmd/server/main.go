package main

import "remote-browser-env/internal/bootstrap"

func main() {
	bootstrap.NewApp().Run()
}
