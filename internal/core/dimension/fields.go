package dimension

// Field is a logical column of the match fact graph. Storage adapters map
// fields onto physical columns; the combinator only speaks in fields.
type Field string

const (
	FieldPlayerID   Field = "player_id"
	FieldTeamID     Field = "team_id"
	FieldFinal      Field = "final"
	FieldWinner     Field = "winner"
	FieldHeroID     Field = "hero_id"
	FieldRoleID     Field = "role_id"
	FieldSkillTier  Field = "skill_tier"
	FieldWentAFK    Field = "went_afk"
	FieldGameModeID Field = "game_mode_id"
	FieldShardID    Field = "shard_id"
	FieldPatch      Field = "patch_version"
	FieldCreatedAt  Field = "created_at"
	FieldDuration   Field = "duration"
)

// Fields lists every field a stored predicate may reference.
var Fields = []Field{
	FieldPlayerID, FieldTeamID, FieldFinal, FieldWinner, FieldHeroID, FieldRoleID,
	FieldSkillTier, FieldWentAFK, FieldGameModeID, FieldShardID, FieldPatch,
	FieldCreatedAt, FieldDuration,
}

// ValidField reports whether name is a known fact field.
func ValidField(name string) bool {
	for _, f := range Fields {
		if string(f) == name {
			return true
		}
	}
	return false
}
