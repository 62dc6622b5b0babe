package main

import "github.com/beasroy/shopify-SAAS-sub001/pkg/cli"

func main() {
	cli.Execute(cli.NewServiceCommand(cli.Options{
		Name:        "shopify-saas",
		Description: "Shopify analytics backend: webhook intake, job queue, scheduler and caches",
	}))
}
