package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akorkmaz/civita/internal/models"
)

var fixtureSeq int

func nextSeq() int {
	fixtureSeq++
	return fixtureSeq
}

func seedUser(t *testing.T, d *DB, role models.Role, teamID *string) *models.User {
	t.Helper()
	n := nextSeq()
	u := &models.User{
		Phone:        fmt.Sprintf("+90555%07d", n),
		Email:        fmt.Sprintf("user%d@example.com", n),
		Name:         fmt.Sprintf("User %d", n),
		PasswordHash: "x",
		Role:         role,
		TeamID:       teamID,
		IsActive:     true,
	}
	require.NoError(t, NewUserRepo(d).Create(context.Background(), u))
	return u
}

func seedTeam(t *testing.T, d *DB, name string, fallback bool) *models.Team {
	t.Helper()
	tm := &models.Team{Name: name, IsFallback: fallback}
	require.NoError(t, NewTeamRepo(d).Create(context.Background(), tm))
	return tm
}

func seedCategory(t *testing.T, d *DB, name string) *models.Category {
	t.Helper()
	c := &models.Category{Name: name, IsActive: true}
	require.NoError(t, NewCategoryRepo(d).Create(context.Background(), c))
	return c
}

func seedDistrict(t *testing.T, d *DB, name, city string) *models.District {
	t.Helper()
	dist := &models.District{Name: name, City: city}
	require.NoError(t, NewDistrictRepo(d).Create(context.Background(), dist))
	return dist
}

func seedLocation(t *testing.T, d *DB, lat, lng float64, district string) *models.Location {
	t.Helper()
	l := &models.Location{Latitude: lat, Longitude: lng, District: district, City: models.DefaultCity}
	require.NoError(t, NewTicketRepo(d).CreateLocation(context.Background(), l))
	return l
}

func seedTicket(t *testing.T, d *DB, reporter *models.User, category *models.Category, loc *models.Location, teamID *string) *models.Ticket {
	t.Helper()
	n := nextSeq()
	tk := &models.Ticket{
		Title:       fmt.Sprintf("Broken streetlight %d", n),
		Description: "The streetlight has been out for three nights.",
		Status:      models.StatusNew,
		CategoryID:  category.ID,
		LocationID:  loc.ID,
		ReporterID:  reporter.ID,
		TeamID:      teamID,
	}
	require.NoError(t, NewTicketRepo(d).Create(context.Background(), tk))
	return tk
}
