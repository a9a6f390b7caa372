// Package mcptools exposes the simulation to MCP agents over stdio.
//
// Read tools:
//   - world_status, view_tile, view_map, market_report, company_stats,
//     list_vehicles, recent_events
//
// Command tools act as the configured company:
//   - build, buy_vehicle, create_route, assign_route, set_route, stop_vehicle
package mcptools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/talgya/freight-tycoon/internal/engine"
	"github.com/talgya/freight-tycoon/internal/vehicle"
	"github.com/talgya/freight-tycoon/internal/world"
)

// Server binds MCP tool handlers to a running simulation.
type Server struct {
	sim     *engine.Simulation
	lock    sync.Locker
	company int

	mcpServer *server.MCPServer
}

// New registers every tool. lock must be the one the engine loop holds.
func New(sim *engine.Simulation, lock sync.Locker, company int) *Server {
	t := &Server{sim: sim, lock: lock, company: company}
	t.mcpServer = server.NewMCPServer(
		"Freight Tycoon",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Freight Tycoon - MCP Interface

You run a transport company on a tile map. Towns produce passengers and mail,
industries produce goods. Towns feed the first station within 2 tiles,
industries feed every station within 3. Vehicles carry the cargo along
routes for money.

MAP GLYPHS: ~ water, ^ mountain, ♠ forest, ∙ desert, blank grass,
◉ town, ▓ industry, ■ station, . road, ─ │ ┐ ┼ track.
Vehicles draw on top: T train or large truck, B bus, t small truck, S ship, A aircraft.

TYPICAL LOOP:
1. world_status and view_map to find towns and industries
2. build a station or bus_stop next to a town
3. buy_vehicle on that station (type "auto" picks a class for the tile)
4. create_route with two or more stops, then assign_route
5. watch company_stats and recent_events

Costs are in dollars. Commands fail without changing anything when funds run short.`),
	)
	t.registerTools()
	return t
}

// MCPServer returns the underlying server for ServeStdio.
func (t *Server) MCPServer() *server.MCPServer {
	return t.mcpServer
}

// Serve blocks serving stdio until the client disconnects.
func (t *Server) Serve() error {
	return server.ServeStdio(t.mcpServer)
}

func coordProps() map[string]interface{} {
	return map[string]interface{}{
		"x": map[string]interface{}{"type": "number", "description": "Column, 0-based"},
		"y": map[string]interface{}{"type": "number", "description": "Row, 0-based"},
	}
}

func withProps(base map[string]interface{}, extra map[string]interface{}) map[string]interface{} {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

var stopsSchema = map[string]interface{}{
	"type":        "array",
	"description": "Waypoints as [{\"x\":1,\"y\":2}, ...]",
	"items": map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"x": map[string]interface{}{"type": "number"},
			"y": map[string]interface{}{"type": "number"},
		},
	},
}

func (t *Server) registerTools() {
	// Read-only views
	t.mcpServer.AddTool(mcp.Tool{
		Name:        "world_status",
		Description: "Get the world summary: date, size, counts, population, economy",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, t.handleWorldStatus)

	t.mcpServer.AddTool(mcp.Tool{
		Name:        "view_map",
		Description: "Render the whole map as text, one row per line",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, t.handleViewMap)

	t.mcpServer.AddTool(mcp.Tool{
		Name:        "view_tile",
		Description: "Describe one tile: terrain, content, nearby stations",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: coordProps(),
			Required:   []string{"x", "y"},
		},
	}, t.handleViewTile)

	t.mcpServer.AddTool(mcp.Tool{
		Name:        "market_report",
		Description: "Cargo prices, supply, demand and the economic state",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, t.handleMarketReport)

	t.mcpServer.AddTool(mcp.Tool{
		Name:        "company_stats",
		Description: "Money, fleet size, routes and reputation of your company",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, t.handleCompanyStats)

	t.mcpServer.AddTool(mcp.Tool{
		Name:        "list_vehicles",
		Description: "List your vehicles with position, state and load",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, t.handleListVehicles)

	t.mcpServer.AddTool(mcp.Tool{
		Name:        "recent_events",
		Description: "Newest simulation events",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "How many events (default 20)",
				},
			},
		},
	}, t.handleRecentEvents)

	// Commands
	t.mcpServer.AddTool(mcp.Tool{
		Name:        "build",
		Description: "Build on an empty land tile. Kinds: " + buildKindList(),
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: withProps(coordProps(), map[string]interface{}{
				"kind": map[string]interface{}{
					"type":        "string",
					"description": "What to build",
					"enum":        buildKindNames(),
				},
			}),
			Required: []string{"x", "y", "kind"},
		},
	}, t.handleBuild)

	t.mcpServer.AddTool(mcp.Tool{
		Name:        "buy_vehicle",
		Description: "Buy a vehicle and place it on a tile",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: withProps(coordProps(), map[string]interface{}{
				"type": map[string]interface{}{
					"type":        "string",
					"description": "train, bus, small_truck, large_truck, ship, small_plane, large_plane or auto",
				},
			}),
			Required: []string{"x", "y"},
		},
	}, t.handleBuyVehicle)

	t.mcpServer.AddTool(mcp.Tool{
		Name:        "create_route",
		Description: "Create a named route with at least two stops",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name":  map[string]interface{}{"type": "string", "description": "Route name (optional)"},
				"stops": stopsSchema,
				"cargo": map[string]interface{}{
					"type":        "array",
					"description": "Cargo filter, e.g. [\"passengers\"]; empty carries anything",
					"items":       map[string]interface{}{"type": "string"},
				},
			},
			Required: []string{"stops"},
		},
	}, t.handleCreateRoute)

	t.mcpServer.AddTool(mcp.Tool{
		Name:        "assign_route",
		Description: "Put a vehicle on one of your routes",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"vehicle_id": map[string]interface{}{"type": "number"},
				"route_id":   map[string]interface{}{"type": "number"},
			},
			Required: []string{"vehicle_id", "route_id"},
		},
	}, t.handleAssignRoute)

	t.mcpServer.AddTool(mcp.Tool{
		Name:        "set_route",
		Description: "Give a vehicle ad-hoc waypoints; one waypoint means go there",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"vehicle_id": map[string]interface{}{"type": "number"},
				"stops":      stopsSchema,
			},
			Required: []string{"vehicle_id", "stops"},
		},
	}, t.handleSetRoute)

	t.mcpServer.AddTool(mcp.Tool{
		Name:        "stop_vehicle",
		Description: "Clear a vehicle's orders",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"vehicle_id": map[string]interface{}{"type": "number"},
			},
			Required: []string{"vehicle_id"},
		},
	}, t.handleStopVehicle)
}

func buildKindNames() []string {
	var out []string
	for _, k := range engine.BuildKinds() {
		out = append(out, k.String())
	}
	return out
}

func buildKindList() string {
	var parts []string
	for _, k := range engine.BuildKinds() {
		parts = append(parts, fmt.Sprintf("%s ($%s)", k, humanize.Comma(k.Cost())))
	}
	return strings.Join(parts, ", ")
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

// intArg reads a JSON number argument.
func intArg(args map[string]interface{}, key string) (int, error) {
	switch v := args[key].(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case nil:
		return 0, fmt.Errorf("missing %s", key)
	}
	return 0, fmt.Errorf("%s must be a number", key)
}

func stopsArg(args map[string]interface{}) ([]world.Coord, error) {
	raw, ok := args["stops"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("stops must be an array of {x, y}")
	}
	stops := make([]world.Coord, 0, len(raw))
	for i, r := range raw {
		m, ok := r.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("stop %d must be an object", i)
		}
		x, err := intArg(m, "x")
		if err != nil {
			return nil, fmt.Errorf("stop %d: %w", i, err)
		}
		y, err := intArg(m, "y")
		if err != nil {
			return nil, fmt.Errorf("stop %d: %w", i, err)
		}
		stops = append(stops, world.Coord{X: x, Y: y})
	}
	return stops, nil
}

func (t *Server) handleWorldStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t.lock.Lock()
	st := t.sim.Status()
	t.lock.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "%s (tick %d)\n", st.Date, st.Tick)
	fmt.Fprintf(&b, "Map: %dx%d\n", st.Width, st.Height)
	fmt.Fprintf(&b, "Towns: %d  Industries: %d  Stations: %d  Vehicles: %d\n", st.Towns, st.Industries, st.Stations, st.Vehicles)
	fmt.Fprintf(&b, "Population: %s\n", humanize.Comma(int64(st.Population)))
	fmt.Fprintf(&b, "Economy: %s\n", st.Economy)
	return mcp.NewToolResultText(b.String()), nil
}

func (t *Server) handleViewMap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t.lock.Lock()
	out := t.sim.Render()
	t.lock.Unlock()
	return mcp.NewToolResultText(out), nil
}

func (t *Server) handleViewTile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	x, err := intArg(args, "x")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	y, err := intArg(args, "y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	t.lock.Lock()
	view, ok := t.sim.TileView(x, y)
	t.lock.Unlock()
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("(%d,%d) is off the map", x, y)), nil
	}
	return mcp.NewToolResultText(formatTile(view)), nil
}

func formatTile(v engine.TileView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tile (%d,%d) [%s]\n", v.X, v.Y, v.Glyph)
	fmt.Fprintf(&b, "Terrain: %s (height %d)\n", v.Terrain, v.Height)
	fmt.Fprintf(&b, "Content: %s\n", v.Label)
	if v.Vehicle != "" {
		fmt.Fprintf(&b, "Vehicle here: %s\n", v.Vehicle)
	}
	for k, d := range v.Details {
		fmt.Fprintf(&b, "  %s: %v\n", k, d)
	}
	if len(v.Stations) > 0 {
		b.WriteString("Stations in range:")
		for _, c := range v.Stations {
			fmt.Fprintf(&b, " (%d,%d)", c.X, c.Y)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (t *Server) handleMarketReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t.lock.Lock()
	r := t.sim.MarketReport()
	t.lock.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Economy: %s  Inflation: %.1f%%  Month: %d\n\n", r.State, r.InflationRate*100, r.Month)
	fmt.Fprintf(&b, "%-12s %10s %8s %8s  %s\n", "CARGO", "PRICE", "SUPPLY", "DEMAND", "TREND")
	for _, c := range r.Cargo {
		fmt.Fprintf(&b, "%-12s %10.2f %8d %8d  %s\n", c.Cargo, c.Price, c.Supply, c.Demand, c.Trend)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (t *Server) handleCompanyStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	st, err := t.sim.CompanyStats(t.company)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", st.Name)
	fmt.Fprintf(&b, "Money: $%s  Total value: $%s\n", humanize.Comma(st.Money), humanize.Comma(st.TotalValue))
	fmt.Fprintf(&b, "Vehicles: %d  Stations: %d  Routes: %d\n", st.Vehicles, st.Stations, st.Routes)
	fmt.Fprintf(&b, "Reputation: %.0f/100\n", st.Reputation)
	fmt.Fprintf(&b, "Monthly running costs: $%s  Route profit: $%s\n", humanize.Comma(st.MonthlyExpenses), humanize.Comma(st.RouteProfit))
	for _, r := range t.sim.Companies[t.company].Routes {
		fmt.Fprintf(&b, "  route %d %q: %d stops, %d vehicles, profit $%s\n", r.ID, r.Name, len(r.Stops), len(r.VehicleIDs), humanize.Comma(r.Profit))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (t *Server) handleListVehicles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t.lock.Lock()
	list := t.sim.VehicleStatuses(t.company)
	t.lock.Unlock()

	if len(list) == 0 {
		return mcp.NewToolResultText("No vehicles. Use buy_vehicle on a station tile."), nil
	}
	var b strings.Builder
	for _, v := range list {
		fmt.Fprintf(&b, "#%d %s at (%d,%d) %s, load %d/%d, profit $%s\n",
			v.ID, v.Name, v.Pos.X, v.Pos.Y, v.State, v.Cargo.Total(), v.Capacity, humanize.Comma(v.Profit))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (t *Server) handleRecentEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := 20
	if n, err := intArg(arguments(request), "limit"); err == nil && n > 0 {
		limit = min(n, engine.MaxEvents)
	}

	t.lock.Lock()
	events := t.sim.RecentEvents(limit)
	t.lock.Unlock()

	if len(events) == 0 {
		return mcp.NewToolResultText("No events yet."), nil
	}
	var b strings.Builder
	for _, e := range events {
		fmt.Fprintf(&b, "[%s] %s\n", engine.SimTime(e.Tick), e.Description)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (t *Server) handleBuild(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	x, err := intArg(args, "x")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	y, err := intArg(args, "y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, _ := args["kind"].(string)
	kind, err := engine.ParseBuildKind(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	t.lock.Lock()
	defer t.lock.Unlock()
	if err := t.sim.Build(t.company, x, y, kind); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	money := t.sim.Companies[t.company].Money
	return mcp.NewToolResultText(fmt.Sprintf("Built %s at (%d,%d) for $%s. Money left: $%s",
		kind, x, y, humanize.Comma(kind.Cost()), humanize.Comma(money))), nil
}

func (t *Server) handleBuyVehicle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	x, err := intArg(args, "x")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	y, err := intArg(args, "y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	typ, _ := args["type"].(string)

	t.lock.Lock()
	defer t.lock.Unlock()

	var p vehicle.PurchaseType
	if typ == "" || strings.EqualFold(typ, "auto") {
		p, err = t.sim.RecommendClass(x, y)
	} else {
		p, err = vehicle.ParsePurchaseType(typ)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := t.sim.BuyVehicle(t.company, p, x, y)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, _ := t.sim.Vehicle(id)
	return mcp.NewToolResultText(fmt.Sprintf("Bought %s #%d at (%d,%d). Capacity %d, running cost $%s/tick.",
		vehicle.Name(v.Kind), id, x, y, v.Capacity(), humanize.Comma(v.RunningCost()))), nil
}

func (t *Server) handleCreateRoute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	stops, err := stopsArg(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, _ := args["name"].(string)

	var cargo []world.CargoKind
	if raw, ok := args["cargo"].([]interface{}); ok {
		for _, c := range raw {
			s, _ := c.(string)
			k, ok := world.ParseCargo(s)
			if !ok {
				return mcp.NewToolResultError(fmt.Sprintf("unknown cargo %q", s)), nil
			}
			cargo = append(cargo, k)
		}
	}

	t.lock.Lock()
	defer t.lock.Unlock()
	r, err := t.sim.CreateRoute(t.company, name, stops, cargo)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	est := t.sim.EstimateRoute(r)
	var b strings.Builder
	fmt.Fprintf(&b, "Created route %d %q with %d stops. Use assign_route with route_id %d.\n",
		r.ID, r.Name, len(r.Stops), r.ID)
	fmt.Fprintf(&b, "Market value per unit over a %d-tile lap:", est.Length)
	for _, cv := range est.PerUnit {
		fmt.Fprintf(&b, " %s $%.2f", cv.Cargo, cv.Price)
	}
	b.WriteString("\n")
	return mcp.NewToolResultText(b.String()), nil
}

func (t *Server) handleAssignRoute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	id, err := intArg(args, "vehicle_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	routeID, err := intArg(args, "route_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	t.lock.Lock()
	defer t.lock.Unlock()
	if err := t.sim.AssignRoute(vehicle.ID(id), uint32(routeID)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Vehicle #%d now runs route %d.", id, routeID)), nil
}

func (t *Server) handleSetRoute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	id, err := intArg(args, "vehicle_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	stops, err := stopsArg(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	t.lock.Lock()
	defer t.lock.Unlock()
	if err := t.sim.SetRoute(vehicle.ID(id), stops); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Vehicle #%d has %d waypoints.", id, len(stops))), nil
}

func (t *Server) handleStopVehicle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := intArg(arguments(request), "vehicle_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	t.lock.Lock()
	defer t.lock.Unlock()
	if err := t.sim.StopVehicle(vehicle.ID(id)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Vehicle #%d stopped.", id)), nil
}
