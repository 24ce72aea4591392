package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"briefdesk/internal/types"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var entityKind string

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "Manage the known clients and projects",
	Long: `Clients and projects are matched by name against incoming activity
and used to enrich digest prompts. Add the ones you care about here;
attributes (key=value) become prompt context.`,
}

var entitiesListCmd = &cobra.Command{
	Use:   "list [name...]",
	Short: "Look up entities by name, or list recent ones",
	RunE:  listEntities,
}

var entitiesAddCmd = &cobra.Command{
	Use:   "add [name] [key=value...]",
	Short: "Add or update an entity",
	Args:  cobra.MinimumNArgs(1),
	RunE:  addEntity,
}

func init() {
	entitiesCmd.PersistentFlags().StringVarP(&entityKind, "kind", "k", "client", "Entity kind (client or project)")
	entitiesCmd.AddCommand(entitiesListCmd)
	entitiesCmd.AddCommand(entitiesAddCmd)
}

func parseKind(s string) (types.EntityKind, error) {
	switch types.EntityKind(strings.ToLower(s)) {
	case types.KindClient:
		return types.KindClient, nil
	case types.KindProject:
		return types.KindProject, nil
	default:
		return "", fmt.Errorf("unknown entity kind %q (want client or project)", s)
	}
}

func listEntities(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	kind, err := parseKind(entityKind)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		return fmt.Errorf("give at least one name to look up")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	entities, err := a.store.FindEntitiesByNames(ctx, kind, args)
	if err != nil {
		return err
	}
	if len(entities) == 0 {
		fmt.Println("No matching entities.")
		return nil
	}

	for _, e := range entities {
		fmt.Printf("%s  %s (%s)\n", e.ID, e.Name, e.Kind)
		if !e.LastReferenced.IsZero() {
			fmt.Printf("    last referenced: %s\n", e.LastReferenced.Local().Format("2006-01-02 15:04"))
		}
		for k, v := range e.Profile {
			fmt.Printf("    %s: %s\n", k, v)
		}
	}
	return nil
}

func addEntity(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	kind, err := parseKind(entityKind)
	if err != nil {
		return err
	}

	profile := make(map[string]string)
	for _, pair := range args[1:] {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("attribute %q is not key=value", pair)
		}
		profile[k] = v
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	now := time.Now().UTC()
	entity := types.Entity{
		ID:        uuid.NewString(),
		Kind:      kind,
		Name:      args[0],
		Profile:   profile,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Reuse the existing row when the name is already known, merging
	// in the new attributes.
	if existing, err := a.store.FindEntitiesByNames(ctx, kind, []string{args[0]}); err == nil && len(existing) > 0 {
		entity.ID = existing[0].ID
		entity.CreatedAt = existing[0].CreatedAt
		for k, v := range existing[0].Profile {
			if _, ok := profile[k]; !ok {
				profile[k] = v
			}
		}
	}

	if err := a.store.UpsertEntity(ctx, entity); err != nil {
		return err
	}

	fmt.Printf("Saved %s %q (%s)\n", kind, entity.Name, entity.ID)
	return nil
}
