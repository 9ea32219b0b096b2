package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	log "github.com/sirupsen/logrus"

	"github.com/round-cube/parking-attendant/shared"
)

const (
	letters = "ABCDEFHIJKLMNOPQRVXYZ"
	digits  = "0123456789"
)

type Settings struct {
	AttendantURL   string
	FixturePath    string
	MatchRate      float64
	RequestTimeout time.Duration
}

func loadSettings() (Settings, error) {
	var s Settings
	var err error

	s.FixturePath, err = shared.GetEnv("FIXTURE_PATH")
	if err != nil {
		return s, err
	}
	s.AttendantURL = strings.TrimRight(shared.GetEnvDefault("ATTENDANT_URL", "http://127.0.0.1:8080"), "/")
	s.RequestTimeout = time.Duration(shared.GetEnvInt("HTTP_REQUEST_TIMEOUT_S", 10)) * time.Second
	s.MatchRate, err = getMatchRate("MATCH_RATE", 0.8)
	if err != nil {
		return s, err
	}
	return s, nil
}

func getMatchRate(key string, defaultValue float64) (float64, error) {
	if value, set := os.LookupEnv(key); set {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			if floatValue < 0 || floatValue > 1 {
				return 0, errors.New("MATCH_RATE must be between 0 and 1")
			}
			return floatValue, nil
		}
	}
	return defaultValue, nil
}

// readPlates loads a fixture shaped like [{"vehicle_plate": "ABC-123"}, ...].
func readPlates(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	var entrances []shared.Entrance
	if err := json.Unmarshal(raw, &entrances); err != nil {
		return nil, err
	}
	plates := make([]string, 0, len(entrances))
	for _, e := range entrances {
		if e.VehiclePlate != "" {
			plates = append(plates, e.VehiclePlate)
		}
	}
	return plates, nil
}

type Client struct {
	baseURL string
	http    *http.Client
}

func (c *Client) Send(gate, text string) (string, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %s", err)
	}
	resp, err := c.http.Post(c.baseURL+"/conversations/"+gate+"/messages", "application/json", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("response status code %d", resp.StatusCode)
	}
	var out struct {
		Reply string `json:"reply"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Reply, nil
}

// Run enters every plate, lets a MatchRate share of them leave, and requests
// exits for unknown plates for the remainder.
func Run(s Settings, c *Client, plates []string) (int, error) {
	gate, err := getGateId()
	if err != nil {
		return 0, err
	}
	parked := make(map[string]int)

	exchanges := 0
	converse := func(kind, trigger, plate string) error {
		if _, err := c.Send(gate, trigger); err != nil {
			return fmt.Errorf("failed to begin %s: %s", kind, err)
		}
		reply, err := c.Send(gate, plate)
		if err != nil {
			return fmt.Errorf("failed to send %s plate: %s", kind, err)
		}
		exchanges++
		log.WithFields(log.Fields{
			"gate":          gate,
			"vehicle_plate": plate,
			"reply":         reply,
		}).Info("new " + kind)
		return nil
	}

	for _, plate := range plates {
		if err := converse("entrance", "Entry", plate); err != nil {
			return exchanges, err
		}
		parked[strings.ToUpper(plate)]++
	}

	matched := int(float64(len(plates)) * s.MatchRate)
	for _, plate := range plates[:matched] {
		if err := converse("exit", "Exit", plate); err != nil {
			return exchanges, err
		}
	}
	for i := 0; i < len(plates)-matched; i++ {
		if err := converse("exit", "Exit", getVehiclePlate(parked)); err != nil {
			return exchanges, err
		}
	}
	return exchanges, nil
}

func getGateId() (string, error) {
	v7, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return "GATE-" + v7.String(), nil
}

func getVehiclePlate(parked map[string]int) string {
	for {
		letterPart := make([]byte, 3)
		for i := range letterPart {
			letterPart[i] = letters[rand.Intn(len(letters))]
		}

		digitPart := make([]byte, 3)
		for i := range digitPart {
			digitPart[i] = digits[rand.Intn(len(digits))]
		}

		plate := fmt.Sprintf("%s-%s", string(letterPart), string(digitPart))
		if parked[plate] == 0 {
			return plate
		}
	}
}

func main() {
	shared.InitLog(shared.GetEnvDefault("LOG_LEVEL", "info"))
	settings, err := loadSettings()
	shared.PanicOnError(err, "failed to read settings")

	plates, err := readPlates(settings.FixturePath)
	shared.PanicOnError(err, "failed to read fixture")

	client := &Client{baseURL: settings.AttendantURL, http: &http.Client{Timeout: settings.RequestTimeout}}
	n, err := Run(settings, client, plates)
	shared.PanicOnError(err, "simulation aborted")
	log.Infof("simulation finished after %d exchanges", n)
}
