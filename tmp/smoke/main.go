// Command smoke drives a throwaway workspace through the HTTP API with the
// Go SDK: import a catalog, create an order, delay a step, finish it and print
// the projected schedule.
package main

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	piedmontsdk "github.com/SmartXchain/piedmont-sub000/sdk/go"

	"github.com/SmartXchain/piedmont-sub000/internal/app"
	"github.com/SmartXchain/piedmont-sub000/internal/server"
)

const catalog = `
methods:
  - {id: clean, title: Alkaline clean, tank: Tank 1, touch: {min: 10, max: 20}, run: {min: 15, max: 15}}
  - {id: anodize, title: Type II anodize, tank: Tank 4, touch: {min: 15, max: 15}, run: {min: 30, max: 30}}
routings:
  - id: anodize
    name: Clean and anodize
    steps:
      - {step: 10, method: clean}
      - {step: 20, method: anodize}
`

func main() {
	dir, err := os.MkdirTemp("", "piedmont-smoke")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)
	ws, err := app.Open(dir)
	if err != nil {
		panic(err)
	}
	defer ws.Close()
	ctx := context.Background()
	e := ws.Engine(nil, nil)
	if _, err := e.ImportCatalog(ctx, []byte(catalog), "smoke"); err != nil {
		panic(err)
	}

	secret := "smoke-secret"
	h, err := server.New(server.Config{Engine: e, BasePath: "/api", Auth: server.AuthConfig{JWTSecret: secret}})
	if err != nil {
		panic(err)
	}
	ts := httptest.NewServer(h)
	defer ts.Close()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "smoke",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	if err != nil {
		panic(err)
	}
	c := piedmontsdk.New(ts.URL)
	c.BearerToken = token

	o, err := c.CreateOrder(ctx, piedmontsdk.NewOrder{
		WorkOrder: "WO-SMOKE", PartNumber: "PN-1", Quantity: 1, RoutingID: "anodize",
		StartDate: time.Now().Format("2006-01-02"),
	})
	if err != nil {
		panic(err)
	}
	if err := c.AddDelay(ctx, o.ID, 20, 15, "rectifier fault"); err != nil {
		panic(err)
	}
	if err := c.UpdateStatus(ctx, o.ID, "done"); err != nil {
		panic(err)
	}
	sched, err := c.Schedule(ctx)
	if err != nil {
		panic(err)
	}
	for _, ev := range sched.Events {
		fmt.Printf("%-24s %-16s %s -> %s delayed=%v\n", ev.ResourceID, ev.Title, ev.Start, ev.End, ev.ExtendedProps.IsDelayed)
	}
}
