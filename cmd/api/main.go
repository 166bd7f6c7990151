package main

import (
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"dapp-trace-extractor/internal/api"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	port := os.Getenv("API_PORT")
	if port == "" {
		port = "8080"
	}

	server := api.NewServer()
	logrus.Infof("listening on :%s", port)
	if err := http.ListenAndServe(":"+port, server); err != nil {
		logrus.Fatal(err)
	}
}
