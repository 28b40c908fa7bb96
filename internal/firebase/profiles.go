package firebase

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/dimitrije/teamjoin/internal/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const usersCollection = "users"

// ProfileStore reads user profiles from Firestore.
type ProfileStore struct {
	client *firestore.Client
}

func NewProfileStore(client *firestore.Client) *ProfileStore {
	return &ProfileStore{client: client}
}

// GetProfile implements invite.ProfileReader. A missing document is not an
// error: the profile may simply not exist yet.
func (s *ProfileStore) GetProfile(ctx context.Context, uid string) (*models.Identity, error) {
	snap, err := s.client.Collection(usersCollection).Doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return profileFromData(uid, snap.Data()), nil
}

func profileFromData(uid string, data map[string]interface{}) *models.Identity {
	str := func(key string) string {
		v, _ := data[key].(string)
		return v
	}

	identity := &models.Identity{
		UID:         uid,
		Email:       str("email"),
		DisplayName: str("displayName"),
		Role:        str("role"),
		TeamID:      str("teamId"),
	}
	// Older profiles stored the team under proId.
	if identity.TeamID == "" {
		identity.TeamID = str("proId")
	}
	if identity.DisplayName == "" {
		identity.DisplayName = str("name")
	}
	return identity
}
