package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
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
	logger.SetAppName("driver-app")
	logger.SetRole(string(model.RoleDriver))

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

	mgr := session.NewManager(model.RoleDriver, sock, probe, store,
		time.Duration(cfg.Timers.HeartbeatSeconds)*time.Second)
	mgr.AttachLocationPublisher(session.NewLocationPublisher(
		sock, session.NewSimSampler(51.1605, 71.4704), 5*time.Second))

	book := negotiation.NewRequestBook(sock, time.Duration(cfg.Timers.OfferExpirySeconds)*time.Second)
	book.OnExpired = func(req model.RideRequest) {
		fmt.Printf("⌛ Request %s expired\n", req.RideID)
	}
	book.OnMatched = func(p model.MatchedPayload) {
		fmt.Printf("🎉 Matched with passenger %s (ride %s)\n", p.PassengerPhone, p.RideID)
		_ = mgr.JoinRoom(p.RideID)
	}
	book.OnNotice = func(msg string) {
		fmt.Println("⚠️ " + msg)
	}

	wireInbound(sock, mgr, book)

	resume := restore.NewResumeClient(cfg.Server.APIBaseURL, 10*time.Second)
	restorer := restore.NewRestorer(resume, mgr,
		time.Duration(cfg.Timers.ResumeWaitSeconds)*time.Second)
	restorer.OnTrip = func(trip model.TripDetails) {
		fmt.Printf("🔄 Resumed trip %s (%s), passenger %s\n", trip.RideID, trip.State, trip.CounterpartPhone)
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

func wireInbound(sock *socket.Socket, mgr *session.Manager, book *negotiation.RequestBook) {
	sock.On(model.EventUserConnected, func(json.RawMessage) {
		if identity := mgr.Identity(); identity != nil {
			book.SetDriverID(identity.Phone)
		}
	})
	onJSON(sock, model.EventNewRequest, book.HandleNewRequest)
	onJSON(sock, model.EventRideMatched, book.HandleMatched)
	onJSON(sock, model.EventMatchFailed, book.HandleMatchFailed)
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

func commandLoop(mgr *session.Manager, book *negotiation.RequestBook, restorer *restore.Restorer) error {
	fmt.Println("commands: status | requests | submit <rideId> <amount> | decline <rideId> | arrived <rideId> | start <rideId> | offline | online | logout | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "status":
			fmt.Printf("state=%s\n", mgr.State())
		case "requests":
			for _, req := range book.Requests() {
				fmt.Printf("%s  %s → %s  %.2f  [%s]\n",
					req.RideID, req.PickupAddress, req.DestAddress, req.OfferAmount, req.Status)
			}
		case "submit":
			if len(fields) < 3 {
				fmt.Println("usage: submit <rideId> <amount>")
				continue
			}
			amount, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				fmt.Println("bad amount")
				continue
			}
			if err := book.SubmitOffer(fields[1], amount); err != nil {
				fmt.Printf("submit failed: %v\n", err)
			}
		case "decline":
			if len(fields) < 2 {
				continue
			}
			if err := book.Decline(fields[1]); err != nil {
				fmt.Printf("decline failed: %v\n", err)
			}
		case "arrived":
			if len(fields) < 2 {
				continue
			}
			if err := mgr.DriverArrived(fields[1]); err != nil {
				fmt.Printf("arrived failed: %v\n", err)
			}
		case "start":
			if len(fields) < 2 {
				continue
			}
			if err := mgr.StartTrip(fields[1]); err != nil {
				fmt.Printf("start failed: %v\n", err)
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
