package gameserver_test

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ambonmud/server/internal/config"
	"github.com/ambonmud/server/internal/frontend/telnet"
	"github.com/ambonmud/server/internal/game/event"
	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/world"
	"github.com/ambonmud/server/internal/gameserver"
	"github.com/ambonmud/server/internal/storage/memory"
	"github.com/ambonmud/server/internal/testutil"
)

const e2eZone = `
zone: port
startRoom: quay
rooms:
  quay:
    title: The Quay
    description: Fishing boats knock against the pilings.
    exits:
      north: lane
  lane:
    title: A Narrow Lane
    description: Nets hang drying between the houses.
    exits:
      south: quay
`

// startStack boots the engine, router, and telnet acceptor on a loopback
// listener, and returns the listen address plus the player store.
func startStack(t *testing.T) (string, *memory.Repository) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	w, err := world.LoadWorld([][]byte{[]byte(e2eZone)}, world.Options{})
	require.NoError(t, err)
	repo := memory.NewRepository()

	ecfg := config.EngineConfig{
		TickMillis:                   20,
		InboundBudgetMillis:          10,
		InboundChannelCapacity:       256,
		OutboundChannelCapacity:      1024,
		SessionOutboundQueueCapacity: 128,
		SessionOutboundTimeout:       200 * time.Millisecond,
		InboundRetryLimit:            3,
		SchedulerMaxActionsPerTick:   64,
		BehaviorMaxActionsPerTick:    16,
		BehaviorMinActionDelay:       2 * time.Second,
		BehaviorMaxActionDelay:       5 * time.Second,
		CombatRoundMillis:            2000,
		RegenIntervalMillis:          5000,
		PromptText:                   "[%h/%Hhp %m/%Mmp]> ",
	}
	tcfg := config.TelnetConfig{
		Host:                    "127.0.0.1",
		Port:                    0,
		ReadTimeout:             5 * time.Second,
		WriteTimeout:            5 * time.Second,
		ReadBufferBytes:         4096,
		LineMaxLength:           1024,
		MaxNonPrintablePerLine:  32,
		MaxSubnegotiationLength: 4096,
	}

	inbound := event.NewInboundBus(ecfg.InboundChannelCapacity)
	outbound := event.NewOutboundBus(ecfg.OutboundChannelCapacity)

	eng, err := gameserver.NewEngine(gameserver.Deps{
		Config:   ecfg,
		World:    w,
		Repo:     repo,
		Inbound:  inbound,
		Outbound: outbound,
		Logger:   logger,
		RNG:      rand.New(rand.NewSource(7)),
	})
	require.NoError(t, err)

	router := gameserver.NewRouter(outbound, eng.Players(), ecfg.PromptText,
		ecfg.SessionOutboundTimeout, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = eng.Run(ctx) }()
	go func() { _ = router.Run(ctx) }()

	acceptor := telnet.NewAcceptor(tcfg, ecfg, id.NewCounterAllocator(), inbound, router, nil, logger)
	go func() { _ = acceptor.ListenAndServe() }()
	require.Eventually(t, func() bool { return acceptor.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	t.Cleanup(func() {
		acceptor.Stop()
		cancel()
	})
	return acceptor.Addr(), repo
}

func TestLoginCreateAndPlayOverTelnet(t *testing.T) {
	addr, repo := startStack(t)
	client := testutil.NewTelnetClient(t, addr)

	client.ReadUntil("Enter your name:", 3*time.Second)
	assert.True(t, client.Offered(telnet.OptGMCP), "server should offer GMCP at connect")
	client.AcceptGmcp()
	client.Send("Taria")
	client.ReadUntil("Create a new character? (yes/no)", 3*time.Second)
	client.Send("yes")
	client.ReadUntil("Choose a password:", 3*time.Second)
	client.Send("seashell")
	client.ReadUntil("Choose a class:", 3*time.Second)
	client.Send("warrior")
	client.ReadUntil("Choose a race:", 3*time.Second)
	client.Send("human")
	client.ReadUntil("Welcome to the world, Taria the Human Warrior.", 3*time.Second)

	// Entering the world lands the player on the quay.
	client.ReadUntil("The Quay", 3*time.Second)

	client.Send("north")
	client.ReadUntil("A Narrow Lane", 3*time.Second)

	client.Send("look")
	out := client.ReadUntil("Nets hang drying", 3*time.Second)
	assert.Contains(t, out, "A Narrow Lane")

	// GMCP was accepted, so room data rides along as subnegotiations.
	require.Eventually(t, func() bool {
		client.Send("look")
		client.ReadUntil("Nets hang drying", 3*time.Second)
		for _, pkt := range client.GmcpPackets() {
			if strings.HasPrefix(pkt, "Room.Info ") {
				return true
			}
		}
		return false
	}, 3*time.Second, 50*time.Millisecond)

	client.Send("quit")
	client.ReadUntil("Farewell, Taria.", 3*time.Second)

	// Quit saved the character with the room they stood in.
	require.Eventually(t, func() bool {
		rec, err := repo.FindByName(context.Background(), "Taria")
		return err == nil && rec.RoomID == "port:lane"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWrongPasswordOverTelnet(t *testing.T) {
	addr, _ := startStack(t)

	first := testutil.NewTelnetClient(t, addr)
	first.ReadUntil("Enter your name:", 3*time.Second)
	first.Send("Brakk")
	first.ReadUntil("Create a new character?", 3*time.Second)
	first.Send("yes")
	first.ReadUntil("Choose a password:", 3*time.Second)
	first.Send("anchor")
	first.ReadUntil("Choose a class:", 3*time.Second)
	first.Send("rogue")
	first.ReadUntil("Choose a race:", 3*time.Second)
	first.Send("dwarf")
	first.ReadUntil("Welcome to the world,", 3*time.Second)
	first.Send("quit")
	first.ReadUntil("Farewell, Brakk.", 3*time.Second)
	first.Close()

	// Let the engine process the disconnect so the name frees up.
	time.Sleep(250 * time.Millisecond)

	second := testutil.NewTelnetClient(t, addr)
	second.ReadUntil("Enter your name:", 3*time.Second)
	second.Send("Brakk")
	second.ReadUntil("Password:", 3*time.Second)
	second.Send("wrong")
	second.ReadUntil("Wrong password.", 3*time.Second)
	second.Send("anchor")
	second.ReadUntil("Welcome back, Brakk.", 3*time.Second)
}
