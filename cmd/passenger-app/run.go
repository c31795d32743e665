package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"ride-hail-client/internal/common/config"
	"ride-hail-client/internal/common/logger"
	"ride-hail-client/internal/common/model"
	"ride-hail-client/internal/common/netprobe"
	"ride-hail-client/internal/negotiation"
	"ride-hail-client/internal/restore"
	"ride-hail-client/internal/session"
	"ride-hail-client/internal/socket"
	"ride-hail-client/internal/storage"
)

func Run(cfg *config.Config) error {
	logger.SetAppName("passenger-app")
	logger.SetRole(string(model.RolePassenger))

	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	sock := socket.New(
		cfg.Server.WSURL,
		time.Duration(cfg.Reconnect.InitialDelayMillis)*time.Millisecond,
		time.Duration(cfg.Reconnect.MaxDelaySeconds)*time.Second,
	)

	var probe netprobe.Probe
	if cfg.Probe.Address != "" {
		probe = netprobe.NewDialProbe(cfg.Probe.Address, time.Duration(cfg.Probe.TimeoutSeconds)*time.Second)
	} else {
		probe = netprobe.FromWSURL(cfg.Server.WSURL, time.Duration(cfg.Probe.TimeoutSeconds)*time.Second)
	}

	mgr := session.NewManager(model.RolePassenger, sock, probe, store,
		time.Duration(cfg.Timers.HeartbeatSeconds)*time.Second)

	book := negotiation.NewOfferBook(sock, time.Duration(cfg.Timers.OfferExpirySeconds)*time.Second)
	book.OnExpired = func(offer model.RideOffer) {
		fmt.Printf("⌛ Offer from %s expired\n", offer.DriverPhone)
	}
	book.OnMatched = func(p model.MatchedPayload) {
		fmt.Printf("🎉 Matched with driver %s (ride %s)\n", p.DriverPhone, p.RideID)
		_ = mgr.JoinRoom(p.RideID)
	}
	book.OnNotice = func(msg string) {
		fmt.Println("⚠️ " + msg)
	}

	wireInbound(sock, book)

	resume := restore.NewResumeClient(cfg.Server.APIBaseURL, 10*time.Second)
	restorer := restore.NewRestorer(resume, mgr,
		time.Duration(cfg.Timers.ResumeWaitSeconds)*time.Second)
	restorer.OnTrip = func(trip model.TripDetails) {
		fmt.Printf("🔄 Resumed trip %s (%s), driver %s\n", trip.RideID, trip.State, trip.CounterpartPhone)
	}
	restorer.OnRating = func(prompt model.RatingPrompt) {
		fmt.Printf("⭐ Rate your last trip %s\n", prompt.RideID)
	}

	if err := mgr.Connect(); err != nil {
		fmt.Printf("⚠️ Connect failed: %v (retrying from poll loop)\n", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pollLoop(ctx, mgr, time.Duration(cfg.Timers.StatusPollMillis)*time.Millisecond)
	go restorer.OnForeground(ctx)

	return commandLoop(mgr, book, restorer)
}

func wireInbound(sock *socket.Socket, book *negotiation.OfferBook) {
	onJSON(sock, model.EventDriverResponse, book.HandleDriverResponse)
	onJSON(sock, model.EventRideMatched, book.HandleMatched)
	onJSON(sock, model.EventMatchFailed, book.HandleMatchFailed)
	onJSON(sock, model.EventDriverUnavailable, book.HandleDriverUnavailable)
	onJSON(sock, model.EventRideCancelled, book.HandleRideCancelled)
}

func onJSON[T any](sock *socket.Socket, event string, handle func(T)) {
	sock.On(event, func(data json.RawMessage) {
		var payload T
		if err := json.Unmarshal(data, &payload); err != nil {
			logger.Warn("inbound_decode_failed", "Bad payload for "+event, "", "", err.Error())
			return
		}
		handle(payload)
	})
}

// pollLoop is the UI's 500ms status poll: it re-invokes Connect after an
// error so a dead session heals once the network returns.
func pollLoop(ctx context.Context, mgr *session.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if mgr.State() == model.StateError {
				_ = mgr.Connect()
			}
		}
	}
}

func commandLoop(mgr *session.Manager, book *negotiation.OfferBook, restorer *restore.Restorer) error {
	fmt.Println("commands: status | offers | accept <driverPhone> | decline <driverPhone> | offline | online | logout | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "status":
			fmt.Printf("state=%s\n", mgr.State())
			if offer := book.Accepted(); offer != nil {
				fmt.Printf("🚗 Riding with %s (%s) for %.2f\n",
					offer.DriverName, offer.DriverPhone, offer.Amount)
			}
		case "offers":
			for _, offer := range book.Offers() {
				fmt.Printf("%s  %s  %.2f  expires %s  [%s]\n",
					offer.DriverPhone, offer.DriverName, offer.Amount,
					offer.ExpiresAt.Format("15:04:05"), offer.Status)
			}
		case "accept":
			if len(fields) < 2 {
				continue
			}
			if err := book.Accept(fields[1]); err != nil {
				fmt.Printf("accept failed: %v\n", err)
			}
		case "decline":
			if len(fields) < 2 {
				continue
			}
			if err := book.Decline(fields[1]); err != nil {
				fmt.Printf("decline failed: %v\n", err)
			}
		case "offline":
			mgr.Disconnect()
		case "online":
			if err := mgr.Connect(); err != nil {
				fmt.Printf("connect failed: %v\n", err)
			}
		case "logout":
			mgr.Disconnect()
			restorer.ResetGuard()
		case "quit":
			mgr.Disconnect()
			return nil
		}
	}
	return scanner.Err()
}
