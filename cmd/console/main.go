// Command console is an interactive showroom console: type what the customer
// says, watch the tracked state evolve, and see which vehicles the engine
// would put in front of them. Slash commands expose the rest of the engine.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/ShowfloorAI/showfloor-mvp/engine/convstate"
	"github.com/ShowfloorAI/showfloor-mvp/engine/domain"
	"github.com/ShowfloorAI/showfloor-mvp/engine/floor"
	"github.com/ShowfloorAI/showfloor-mvp/engine/inventory"
	"github.com/ShowfloorAI/showfloor-mvp/engine/recommend"
	"github.com/ShowfloorAI/showfloor-mvp/engine/retrieve"
)

const helpText = `  say anything            process it as a customer turn
  /search <query>         rank inventory against a query (session-aware)
  /strict <query>         same, with budget and capacity as hard filters
  /vehicle <stock id>     show one vehicle's record
  /similar <stock id>     vehicles like this one, with reasons
  /recs                   recommendations from this session's history
  /fav <stock id>         mark a favorite
  /reject <stock id> [why] pass on a vehicle
  /phone <number>         find the session for a phone number
  /state                  dump the tracked session state
  /rebuild                reload the inventory file
  /quit                   leave`

func main() {
	var (
		invFile = flag.String("inventory", "data/inventory.json", "inventory feed file")
		session = flag.String("session", "console", "session id for this conversation")
	)
	flag.Parse()

	// Keep stdout for the conversation; engine noise goes to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	svc := floor.New(floor.Deps{
		States:    convstate.NewManager(nil, logger),
		Retriever: retrieve.New(retrieve.Weights{}, logger),
		Recommend: recommend.New(recommend.Weights{}, logger),
		Source:    inventory.NewFileSource(*invFile, logger),
		Metrics:   nil,
		Logger:    logger,
	}, floor.DefaultOptions())

	ctx := context.Background()
	if err := svc.Rebuild(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "inventory load failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("showfloor console: %d vehicles on the lot\n", svc.VehicleCount())
	fmt.Println("type what the customer says, or /help for commands")

	sc := bufio.NewScanner(os.Stdin)
	for fmt.Print("> "); sc.Scan(); fmt.Print("> ") {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if !command(ctx, svc, *session, line) {
				return
			}
			continue
		}

		res, err := svc.ProcessTurn(ctx, domain.Turn{SessionID: *session, Utterance: line})
		if err != nil {
			fmt.Printf("  rejected: %v\n", err)
			continue
		}
		printState(res.State)
		if len(res.Matches) > 0 {
			fmt.Println("  matches:")
			printMatches(res.Matches)
		}
	}
}

// command dispatches a slash command; false means quit.
func command(ctx context.Context, svc *floor.Service, session, line string) bool {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "/quit", "/exit":
		return false

	case "/help":
		fmt.Println(helpText)

	case "/search", "/strict":
		if rest == "" {
			fmt.Println("  usage: " + cmd + " <query>")
			break
		}
		printMatches(svc.Search(rest, session, cmd == "/strict", retrieve.Options{}))

	case "/vehicle":
		rec, ok := svc.Vehicle(rest)
		if !ok {
			fmt.Println("  not on the lot")
			break
		}
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %s: %v\n", k, rec[k])
		}

	case "/similar":
		printMatches(svc.Similar(rest, 0))

	case "/recs":
		matches := svc.PersonalizedForSession(session, 0)
		if len(matches) == 0 {
			fmt.Println("  nothing yet, discuss a few vehicles first")
			break
		}
		printMatches(matches)

	case "/fav":
		if st, ok := svc.Favorite(ctx, session, rest); ok {
			fmt.Printf("  favorites: %s\n", strings.Join(st.FavoriteVehicles, ", "))
		} else {
			fmt.Println("  no session yet")
		}

	case "/reject":
		id, reason, _ := strings.Cut(rest, " ")
		if st, ok := svc.Reject(ctx, session, id, strings.TrimSpace(reason)); ok {
			fmt.Printf("  rejected: %s\n", strings.Join(st.RejectedVehicles, ", "))
		} else {
			fmt.Println("  no session yet")
		}

	case "/phone":
		if st, ok := svc.SessionByPhone(ctx, rest); ok {
			fmt.Printf("  session %s\n", st.SessionID)
			printState(st)
		} else {
			fmt.Println("  no customer with that number")
		}

	case "/state":
		if st, ok := svc.Session(session); ok {
			printState(st)
		} else {
			fmt.Println("  no session yet")
		}

	case "/rebuild":
		if err := svc.Rebuild(ctx); err != nil {
			fmt.Printf("  rebuild failed: %v\n", err)
		} else {
			fmt.Printf("  %d vehicles on the lot\n", svc.VehicleCount())
		}

	default:
		fmt.Println("  unknown command, /help lists them")
	}
	return true
}

func printState(st *convstate.State) {
	fmt.Printf("  [%s | interest %s | %s]", st.Stage, st.InterestLevel, st.Sentiment)
	if st.CustomerName != "" {
		fmt.Printf(" %s", st.CustomerName)
	}
	if st.CustomerPhone != "" {
		fmt.Printf(" (%s)", st.CustomerPhone)
	}
	fmt.Println()

	if st.BudgetMin > 0 || st.BudgetMax > 0 {
		fmt.Printf("  budget: $%.0f to $%.0f", st.BudgetMin, st.BudgetMax)
		if st.MonthlyTarget > 0 {
			fmt.Printf(" (~$%.0f/mo)", st.MonthlyTarget)
		}
		fmt.Println()
	}
	if len(st.PreferredTypes) > 0 {
		fmt.Printf("  wants: %s\n", strings.Join(st.PreferredTypes, ", "))
	}
	if len(st.RequestedFeatures) > 0 {
		fmt.Printf("  features: %s\n", strings.Join(st.RequestedFeatures, ", "))
	}
	if st.TradeIn.Mentioned {
		fmt.Printf("  trade-in: %s\n", strings.TrimSpace(fmt.Sprintf("%d %s %s", st.TradeIn.Year, st.TradeIn.Make, st.TradeIn.Model)))
	}
	if n := len(st.DiscussedVehicles); n > 0 {
		fmt.Printf("  discussed %d vehicle(s)", n)
		if len(st.FavoriteVehicles) > 0 {
			fmt.Printf(", favorites: %s", strings.Join(st.FavoriteVehicles, ", "))
		}
		fmt.Println()
	}
	for _, o := range st.Objections {
		if !o.Addressed {
			fmt.Printf("  open objection (%s): %s\n", o.Category, o.Text)
		}
	}
}

func printMatches(matches []domain.ScoredVehicle) {
	if len(matches) == 0 {
		fmt.Println("  no matches")
		return
	}
	for i, m := range matches {
		f := m.Features
		fmt.Printf("  %d. [%s] %d %s %s  $%.0f  (%s, %.1f)\n",
			i+1, f.StockID, f.Year, f.Make, f.Model, f.Price, m.Confidence, m.Score)
		if len(m.Reasons) > 0 {
			fmt.Printf("     %s\n", strings.Join(m.Reasons, "; "))
		}
		for _, w := range m.Warnings {
			fmt.Printf("     ! %s\n", w)
		}
	}
}
