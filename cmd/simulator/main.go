package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

// VehicleRequest mirrors the body of POST /api/vehicles.
type VehicleRequest struct {
	Type          string  `json:"type"`
	Make          string  `json:"make"`
	Model         string  `json:"model"`
	Year          int     `json:"year"`
	Doors         int     `json:"doors,omitempty"`
	TopSpeed      float64 `json:"topSpeed,omitempty"`
	CargoCapacity float64 `json:"cargoCapacity,omitempty"`
}

// MaintenanceRequest mirrors the body of POST /api/vehicles/{id}/maintenance.
type MaintenanceRequest struct {
	Date        string  `json:"date"`
	ServiceType string  `json:"type"`
	Cost        float64 `json:"cost"`
	Description string  `json:"description"`
}

// ActionResult is the part of an action response the simulator reads.
type ActionResult struct {
	Outcome string `json:"outcome"`
	Result  struct {
		Message string  `json:"message"`
		Speed   float64 `json:"speed"`
	} `json:"result"`
}

var catalog = map[string][][2]string{
	"Car":       {{"Toyota", "Corolla"}, {"Honda", "Civic"}, {"Volkswagen", "Golf"}, {"Fiat", "Uno"}},
	"SportsCar": {{"Ferrari", "F8"}, {"Porsche", "911"}, {"Chevrolet", "Corvette"}},
	"Truck":     {{"Volvo", "FH"}, {"Scania", "R450"}, {"Mercedes-Benz", "Actros"}},
}

var services = []string{"Oil change", "Tire rotation", "Inspection", "Brake pads", "Air filter"}

var vehicleTypes = []string{"Car", "SportsCar", "Truck"}

// Client talks to the garage API.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{BaseURL: baseURL, Token: token, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

func (c *Client) post(path string, body interface{}, out interface{}) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.BaseURL+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// Login exchanges credentials for a token and keeps it for later calls.
func (c *Client) Login(username, password string) error {
	var resp struct {
		Token string `json:"token"`
	}
	status, err := c.post("/auth/login", map[string]string{"username": username, "password": password}, &resp)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("login failed with status: %d", status)
	}
	c.Token = resp.Token
	return nil
}

func randomVehicle(rng *rand.Rand) VehicleRequest {
	vtype := vehicleTypes[rng.Intn(len(vehicleTypes))]
	pick := catalog[vtype][rng.Intn(len(catalog[vtype]))]
	req := VehicleRequest{
		Type:  vtype,
		Make:  pick[0],
		Model: pick[1],
		Year:  2015 + rng.Intn(10),
	}
	switch vtype {
	case "Car":
		req.Doors = []int{2, 4, 5}[rng.Intn(3)]
	case "SportsCar":
		req.Doors = 2
		req.TopSpeed = float64(280 + rng.Intn(60))
	case "Truck":
		req.CargoCapacity = float64(10 + rng.Intn(30))
	}
	return req
}

func (c *Client) createVehicle(req VehicleRequest) (string, error) {
	var result map[string]interface{}
	status, err := c.post("/vehicles", req, &result)
	if err != nil {
		return "", fmt.Errorf("failed to create vehicle: %w", err)
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("vehicle creation failed with status: %d", status)
	}
	id, ok := result["id"].(string)
	if !ok {
		return "", fmt.Errorf("invalid vehicle ID in response")
	}
	log.WithFields(log.Fields{
		"vehicle_id": id,
		"type":       req.Type,
		"make":       req.Make,
		"model":      req.Model,
	}).Info("Created vehicle")
	return id, nil
}

func (c *Client) act(vehicleID, action string, amount float64) (ActionResult, error) {
	var body interface{}
	if amount != 0 {
		body = map[string]float64{"amount": amount}
	}
	var res ActionResult
	status, err := c.post("/vehicles/"+vehicleID+"/"+action, body, &res)
	if err != nil {
		return res, err
	}
	if status != http.StatusOK {
		return res, fmt.Errorf("%s failed with status: %d", action, status)
	}
	return res, nil
}

func (c *Client) logMaintenance(vehicleID string, rec MaintenanceRequest) error {
	status, err := c.post("/vehicles/"+vehicleID+"/maintenance", rec, nil)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("maintenance failed with status: %d", status)
	}
	return nil
}

// VehicleState is what the simulator remembers about one vehicle.
type VehicleState struct {
	VehicleID string
	Type      string
	Capacity  float64
	Load      float64
}

// step performs one random action on the vehicle.
func step(c *Client, s *VehicleState, rng *rand.Rand, now time.Time) {
	entry := log.WithFields(log.Fields{"vehicle_id": s.VehicleID, "type": s.Type})
	var (
		action string
		amount float64
	)
	switch roll := rng.Float64(); {
	case roll < 0.05:
		action = "stop"
	case roll < 0.10:
		rec := MaintenanceRequest{
			Date:        now.Add(time.Duration(rng.Intn(60)-30) * 24 * time.Hour).UTC().Format(time.RFC3339),
			ServiceType: services[rng.Intn(len(services))],
			Cost:        float64(50 + rng.Intn(450)),
			Description: "logged by simulator",
		}
		if err := c.logMaintenance(s.VehicleID, rec); err != nil {
			entry.WithError(err).Error("Failed to log maintenance")
			return
		}
		entry.WithField("service", rec.ServiceType).Info("Logged maintenance")
		return
	case s.Type == "Truck" && roll < 0.25:
		action, amount = "load", 1+float64(rng.Intn(5))
		if s.Load+amount > s.Capacity {
			action, amount = "unload", s.Load
		}
	case s.Type == "SportsCar" && roll < 0.20:
		action = []string{"boost", "unboost"}[rng.Intn(2)]
	case roll < 0.65:
		action, amount = "accelerate", 5+float64(rng.Intn(40))
	default:
		action, amount = "brake", 5+float64(rng.Intn(30))
	}

	if action == "unload" && amount == 0 {
		return
	}
	if _, err := c.act(s.VehicleID, "start", 0); err != nil {
		entry.WithError(err).Error("Failed to start vehicle")
		return
	}
	res, err := c.act(s.VehicleID, action, amount)
	if err != nil {
		entry.WithError(err).WithField("action", action).Error("Action failed")
		return
	}
	switch action {
	case "load":
		s.Load += amount
	case "unload":
		s.Load -= amount
	}
	entry.WithFields(log.Fields{
		"action":  action,
		"outcome": res.Outcome,
		"speed":   res.Result.Speed,
	}).Info(res.Result.Message)
}

func simulateVehicle(ctx context.Context, c *Client, s *VehicleState, interval time.Duration, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tick.C:
			step(c, s, rng, now)
		}
	}
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return def
}

func main() {
	fleetSize := envInt("FLEET_SIZE", 5)

	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}

	interval := 2 * time.Second
	if n := envInt("SIM_TICK_SECONDS", 2); n >= 1 {
		interval = time.Duration(n) * time.Second
	}

	client := NewClient(apiURL, os.Getenv("SIM_AUTH_TOKEN"))
	if user := os.Getenv("SIM_USERNAME"); user != "" && client.Token == "" {
		if err := client.Login(user, os.Getenv("SIM_PASSWORD")); err != nil {
			log.WithError(err).Fatal("Failed to log in")
		}
	}

	log.WithFields(log.Fields{
		"fleet_size": fleetSize,
		"api_url":    apiURL,
		"interval":   interval,
	}).Info("Starting garage simulation")

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	states := make([]*VehicleState, 0, fleetSize)
	for i := 0; i < fleetSize; i++ {
		req := randomVehicle(rng)
		id, err := client.createVehicle(req)
		if err != nil {
			log.WithError(err).Error("Failed to create vehicle")
			continue
		}
		states = append(states, &VehicleState{VehicleID: id, Type: req.Type, Capacity: req.CargoCapacity})
	}

	log.WithField("created_vehicles", len(states)).Info("Vehicle creation completed")
	if len(states) == 0 {
		log.Error("No vehicles created. Ensure the API is reachable and the credentials are valid. Exiting.")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for _, s := range states {
		wg.Add(1)
		go func(s *VehicleState, seed int64) {
			defer wg.Done()
			simulateVehicle(ctx, client, s, interval, seed)
		}(s, rng.Int63())
	}

	log.Info("Garage simulation started")
	wg.Wait()
	log.Info("Garage simulation stopped")
}
