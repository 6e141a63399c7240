package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/geopick/geopick/internal/geo"
	"github.com/geopick/geopick/internal/invite"
	"github.com/geopick/geopick/internal/store"
)

type demoGame struct {
	id   string
	pois []store.NewPOI
}

func demoPOI(name string, lat, lng float64, points int, description string) store.NewPOI {
	if description == "" {
		description = name
	}
	return store.NewPOI{
		Name:        name,
		Description: description,
		Location:    geo.Coordinate{Latitude: lat, Longitude: lng},
		Points:      points,
	}
}

var demoGames = []demoGame{
	{id: "berlin", pois: []store.NewPOI{
		demoPOI("Alexanderplatz", 52.520008, 13.404954, 100, "Ein belebter Platz mit Fernsehturm, Geschäften und urbanem Flair."),
		demoPOI("Brandenburger Tor", 52.516275, 13.377704, 200, "Ein ikonisches Monument und Symbol für Geschichte und Einheit."),
		demoPOI("Potsdamer Platz", 52.509290, 13.376340, 100, "Ein moderner Knotenpunkt mit Architektur, Kultur und Unterhaltung."),
		demoPOI("Oberbaumbrücke", 52.501834, 13.445656, 100, "Eine markante Brücke mit Doppeldeck-Architektur und historischem Charme."),
		demoPOI("Museumsinsel", 52.516260, 13.402480, 100, "Ein einzigartiges Kulturensemble mit weltberühmten Museen."),
		demoPOI("Volkspark Friedrichshain", 52.528730, 13.442284, 50, "Ein weitläufiger Park mit grünen Wiesen, Hügeln und Entspannungsoasen."),
		demoPOI("Deutsches Technikmuseum", 52.498603, 13.378154, 50, "Ein Museum mit historischen Exponaten zu Technik und Ingenieurskunst."),
		demoPOI("Checkpoint Charlie", 52.507530, 13.390378, 200, "Ein historischer Grenzpunkt und Symbol des Kalten Krieges."),
	}},
	{id: "bht", pois: []store.NewPOI{
		demoPOI("Workout Park", 52.545374, 13.352802, 50, ""),
		demoPOI("Spielplatz auf dem Zeppelinplatz", 52.546413, 13.353094, 200, ""),
		demoPOI("Einfahrt", 52.546101, 13.355068, 50, ""),
		demoPOI("Fahrradständer Zeppelinplatz", 52.545717, 13.351990, 100, ""),
		demoPOI("Eingang Zeppelinplatz", 52.545879, 13.354316, 100, ""),
	}},
	{id: "potsdam", pois: []store.NewPOI{
		demoPOI("Park Sanssouci", 52.40340322194994, 13.029932869765789, 50, ""),
		demoPOI("Filmpark Babelsberg", 52.38494249076188, 13.11788422883501, 200, ""),
		demoPOI("Glienicker Brücke", 52.413617910656896, 13.090731035582499, 50, ""),
		demoPOI("Schloss Cecilienhof", 52.41958918275413, 13.070846179757533, 100, ""),
		demoPOI("Biosphäre Potsdam", 52.41901031179306, 13.049338804902431, 100, ""),
	}},
}

var demoTeams = []string{"Team Rot", "Team Blau"}

// SeedDemo creates the Berlin, BHT and Potsdam demo games with two teams
// each. Does nothing once any POI exists.
func SeedDemo(ctx context.Context, logger *slog.Logger, s Store, invites *invite.Generator) error {
	existing, err := s.ListPOIs(ctx, "")
	if err != nil {
		return fmt.Errorf("listing pois: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	for _, g := range demoGames {
		for _, p := range g.pois {
			p.GameID = g.id
			if _, err := s.CreatePOI(ctx, p); err != nil {
				return fmt.Errorf("seeding %s: %w", p.Name, err)
			}
		}
		for _, name := range demoTeams {
			inv, err := invites.New()
			if err != nil {
				return err
			}
			_, err = s.CreateTeam(ctx, store.NewTeam{
				GameID:     g.id,
				Name:       name,
				InviteCode: inv.Code,
				ShareURL:   inv.ShareURL,
			})
			if err != nil {
				return fmt.Errorf("seeding team %s: %w", name, err)
			}
		}
		logger.Info("demo game seeded", "game_id", g.id, "pois", len(g.pois), "teams", len(demoTeams))
	}
	return nil
}
