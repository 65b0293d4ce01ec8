package store

// Schema is the ads table. LibraryID is the de-facto uniqueness key; the
// pipeline-side existence check enforces it, not a database constraint,
// matching the production store this feeds.
const Schema = `
CREATE TABLE IF NOT EXISTS adsdomains (
    cta_text                 TEXT,
    cta_type                 TEXT,
    __html                   TEXT,
    page_profile_uri         TEXT,
    publisherPlatform        TEXT,
    URLCreative              TEXT,
    url_preview_creative     TEXT,
    AdCreative               TEXT,
    AdMedia                  TEXT,
    profilePict              TEXT,
    page_profile_picture_url TEXT,
    Active                   INTEGER,
    Estatus                  INTEGER,
    CollectionCount          INTEGER,
    CollationID              INTEGER,
    startDate                INTEGER,
    endDate                  INTEGER,
    LibraryID                TEXT,
    ahref                    TEXT,
    pageName                 TEXT,
    pageID                   TEXT,
    AdDescription            TEXT,
    AdTitle                  TEXT,
    age                      TEXT,
    gender                   TEXT,
    languages                TEXT,
    countries                TEXT,
    daysSincePublication     INTEGER,
    lazy_load                INTEGER,
    contains_details         INTEGER,
    domain                   TEXT,
    codeBelongs              TEXT,
    keywords                 TEXT,
    duplicates               INTEGER,
    createdAt                TEXT,
    updatedAt                TEXT
);
CREATE INDEX IF NOT EXISTS idx_adsdomains_library ON adsdomains(LibraryID);
`
