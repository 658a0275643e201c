package main

import (
	"log"
	"os"

	"github.com/Swind/go-task-manager/internal/commands"
)

func main() {
	if err := commands.NewApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
