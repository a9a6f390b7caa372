package mcptools

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/talgya/freight-tycoon/internal/company"
	"github.com/talgya/freight-tycoon/internal/engine"
	"github.com/talgya/freight-tycoon/internal/entropy"
	"github.com/talgya/freight-tycoon/internal/vehicle"
	"github.com/talgya/freight-tycoon/internal/world"
)

func newTestTools(money int64) *Server {
	g := world.NewGrid(10, 10)
	c := company.New("Test Co", money)
	sim := engine.NewSimulation(g, nil, []*company.Company{c}, entropy.NewSeeded(1), vehicle.DefaultSettings())
	sim.PlaceContent(2, 2, world.NewTown("Springfield", 1000, 1.0))
	return New(sim, &sync.Mutex{}, 0)
}

type handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func call(t *testing.T, h handler, args map[string]interface{}) (string, bool) {
	t.Helper()
	result, err := h(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	})
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result == nil || len(result.Content) == 0 {
		t.Fatal("expected content in result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatal("expected text content in result")
	}
	return text.Text, result.IsError
}

func TestNew(t *testing.T) {
	tools := newTestTools(1_000_000)
	if tools.MCPServer() == nil {
		t.Fatal("MCP server should be initialized")
	}
}

func TestReadTools(t *testing.T) {
	tools := newTestTools(1_000_000)
	tools.sim.Tick()

	tests := []struct {
		name string
		h    handler
		args map[string]interface{}
		want string
	}{
		{"world_status", tools.handleWorldStatus, nil, "Towns: 1"},
		{"view_tile", tools.handleViewTile, map[string]interface{}{"x": 2.0, "y": 2.0}, "Springfield"},
		{"market_report", tools.handleMarketReport, nil, "passengers"},
		{"company_stats", tools.handleCompanyStats, nil, "Test Co"},
		{"list_vehicles", tools.handleListVehicles, nil, "No vehicles"},
		{"view_map", tools.handleViewMap, nil, "◉"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := call(t, tt.h, tt.args)
			if isErr {
				t.Fatalf("unexpected error result: %s", text)
			}
			if !strings.Contains(text, tt.want) {
				t.Errorf("expected %q in:\n%s", tt.want, text)
			}
		})
	}
}

func TestViewTileErrors(t *testing.T) {
	tools := newTestTools(1_000_000)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing y", map[string]interface{}{"x": 1.0}},
		{"not a number", map[string]interface{}{"x": "one", "y": 1.0}},
		{"off map", map[string]interface{}{"x": 50.0, "y": 1.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if text, isErr := call(t, tools.handleViewTile, tt.args); !isErr {
				t.Errorf("expected error result, got %s", text)
			}
		})
	}
}

func TestCommandFlow(t *testing.T) {
	tools := newTestTools(1_000_000)

	text, isErr := call(t, tools.handleBuild, map[string]interface{}{"x": 3.0, "y": 2.0, "kind": "bus_stop"})
	if isErr {
		t.Fatalf("build: %s", text)
	}
	if !strings.Contains(text, "975,000") {
		t.Errorf("expected remaining money in %q", text)
	}

	text, isErr = call(t, tools.handleBuyVehicle, map[string]interface{}{"x": 3.0, "y": 2.0, "type": "auto"})
	if isErr {
		t.Fatalf("buy: %s", text)
	}
	if !strings.Contains(text, "#1") {
		t.Errorf("expected vehicle id in %q", text)
	}

	text, isErr = call(t, tools.handleCreateRoute, map[string]interface{}{
		"name":  "shuttle",
		"stops": []interface{}{map[string]interface{}{"x": 3.0, "y": 2.0}, map[string]interface{}{"x": 2.0, "y": 2.0}},
		"cargo": []interface{}{"passengers"},
	})
	if isErr {
		t.Fatalf("create_route: %s", text)
	}
	if !strings.Contains(text, "2-tile lap") || !strings.Contains(text, "passengers $") {
		t.Errorf("expected route estimate in %q", text)
	}

	if text, isErr = call(t, tools.handleAssignRoute, map[string]interface{}{"vehicle_id": 1.0, "route_id": 1.0}); isErr {
		t.Fatalf("assign_route: %s", text)
	}
	v, _ := tools.sim.Vehicle(1)
	if v.RouteID != 1 {
		t.Errorf("route id = %d, want 1", v.RouteID)
	}

	if text, isErr = call(t, tools.handleSetRoute, map[string]interface{}{
		"vehicle_id": 1.0,
		"stops":      []interface{}{map[string]interface{}{"x": 2.0, "y": 2.0}},
	}); isErr {
		t.Fatalf("set_route: %s", text)
	}
	if v.RouteID != 0 {
		t.Errorf("ad-hoc route should clear route id, got %d", v.RouteID)
	}

	if text, isErr = call(t, tools.handleStopVehicle, map[string]interface{}{"vehicle_id": 1.0}); isErr {
		t.Fatalf("stop_vehicle: %s", text)
	}

	text, _ = call(t, tools.handleRecentEvents, map[string]interface{}{"limit": 5.0})
	if !strings.Contains(text, "bought") {
		t.Errorf("expected purchase event in:\n%s", text)
	}
}

func TestCommandErrors(t *testing.T) {
	tools := newTestTools(10_000)

	tests := []struct {
		name string
		h    handler
		args map[string]interface{}
	}{
		{"unknown kind", tools.handleBuild, map[string]interface{}{"x": 1.0, "y": 1.0, "kind": "castle"}},
		{"insufficient funds", tools.handleBuild, map[string]interface{}{"x": 1.0, "y": 1.0, "kind": "station"}},
		{"occupied", tools.handleBuild, map[string]interface{}{"x": 2.0, "y": 2.0, "kind": "road"}},
		{"unknown vehicle type", tools.handleBuyVehicle, map[string]interface{}{"x": 1.0, "y": 1.0, "type": "zeppelin"}},
		{"short route", tools.handleCreateRoute, map[string]interface{}{"stops": []interface{}{map[string]interface{}{"x": 1.0, "y": 1.0}}}},
		{"bad stops", tools.handleCreateRoute, map[string]interface{}{"stops": "nowhere"}},
		{"bad cargo", tools.handleCreateRoute, map[string]interface{}{
			"stops": []interface{}{map[string]interface{}{"x": 1.0, "y": 1.0}, map[string]interface{}{"x": 2.0, "y": 1.0}},
			"cargo": []interface{}{"gold"},
		}},
		{"unknown vehicle", tools.handleStopVehicle, map[string]interface{}{"vehicle_id": 9.0}},
		{"unknown route", tools.handleAssignRoute, map[string]interface{}{"vehicle_id": 9.0, "route_id": 1.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if text, isErr := call(t, tt.h, tt.args); !isErr {
				t.Errorf("expected error result, got %s", text)
			}
		})
	}
	if got := tools.sim.Companies[0].Money; got != 10_000 {
		t.Errorf("money = %d, failed commands should not charge", got)
	}
}
