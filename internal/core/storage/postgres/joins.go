package postgres

import "github.com/aevon-lab/cruncher/internal/core/dimension"

// factSource is the static join over the match graph every aggregation reads from.
const factSource = `
		FROM participant
		JOIN participant_stats ON participant_stats.participant_api_id = participant.api_id
		JOIN roster ON roster.api_id = participant.roster_api_id
		JOIN match ON match.api_id = roster.match_api_id`

// factColumns maps logical fields onto qualified columns of factSource.
var factColumns = map[dimension.Field]string{
	dimension.FieldPlayerID:   "participant.player_api_id",
	dimension.FieldTeamID:     "roster.team_api_id",
	dimension.FieldFinal:      "participant_stats.final",
	dimension.FieldWinner:     "participant.winner",
	dimension.FieldHeroID:     "participant.hero_id",
	dimension.FieldRoleID:     "participant.role_id",
	dimension.FieldSkillTier:  "participant.skill_tier",
	dimension.FieldWentAFK:    "participant.went_afk",
	dimension.FieldGameModeID: "match.game_mode_id",
	dimension.FieldShardID:    "match.shard_id",
	dimension.FieldPatch:      "match.patch_version",
	dimension.FieldCreatedAt:  "match.created_at",
	dimension.FieldDuration:   "match.duration",
}

// factTables must exist before the adapter starts.
var factTables = []string{"participant", "participant_stats", "roster", "match"}
