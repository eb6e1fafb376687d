package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConversation_Validate(t *testing.T) {
	cases := []struct {
		name    string
		conv    Conversation
		wantErr string
	}{
		{name: "single user turn", conv: Conversation{{Role: RoleUser, Content: "I need a bot"}}},
		{name: "alternating", conv: Conversation{
			{Role: RoleUser, Content: "I need a bot"},
			{Role: RoleAssistant, Content: "For whom?"},
			{Role: RoleUser, Content: "Customers"},
		}},
		{name: "system role rejected", conv: Conversation{{Role: RoleSystem, Content: "x"}, {Role: RoleUser, Content: "y"}}, wantErr: "unsupported role"},
		{name: "unknown role", conv: Conversation{{Role: "bot", Content: "x"}}, wantErr: "unsupported role"},
		{name: "blank content", conv: Conversation{{Role: RoleUser, Content: "  "}}, wantErr: "content is empty"},
		{name: "assistant last", conv: Conversation{{Role: RoleUser, Content: "x"}, {Role: RoleAssistant, Content: "y"}}, wantErr: "last message"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.conv.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestConversation_ValidateEmpty(t *testing.T) {
	require.ErrorIs(t, Conversation(nil).Validate(), ErrEmptyConversation)
	require.ErrorIs(t, Conversation{}.Validate(), ErrEmptyConversation)
}

func TestConversation_AssistantTurns(t *testing.T) {
	conv := Conversation{
		{Role: RoleUser, Content: "a"},
		{Role: RoleAssistant, Content: "b"},
		{Role: RoleUser, Content: "c"},
		{Role: RoleAssistant, Content: "d"},
		{Role: RoleUser, Content: "e"},
	}
	require.Equal(t, 2, conv.AssistantTurns())
	require.Zero(t, Conversation(nil).AssistantTurns())
}

func TestConversation_Clone(t *testing.T) {
	require.Nil(t, Conversation(nil).Clone())

	orig := Conversation{{Role: RoleUser, Content: "a"}}
	cp := orig.Clone()
	cp[0].Content = "changed"
	require.Equal(t, "a", orig[0].Content)
}
