package main

//go:generate swag init -g cmd/monitor/main.go -o docs

// @title           Social Media Follower Monitor API
// @version         0.1.0
// @description     Follower-count tracking: platforms, accounts, snapshots, crawl tasks and credentials.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
